package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/minhng/go-pos-ledger/internal/config"
	"github.com/minhng/go-pos-ledger/internal/database"
	"github.com/minhng/go-pos-ledger/internal/logger"
	"github.com/minhng/go-pos-ledger/internal/store"
	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatal("connect to database", "error", err)
	}
	defer db.Close()

	ledger, err := store.NewLedger(cfg.Terminal.NodeID)
	if err != nil {
		log.Fatal("create ledger", "error", err)
	}

	log.Info("connected to database", "terminal_id", cfg.Terminal.NodeID)

	mux := http.NewServeMux()

	mux.HandleFunc("/products", handleProducts(db))
	mux.HandleFunc("/products/", handleProductByID(db))
	mux.HandleFunc("/serials", handleSerials(db))
	mux.HandleFunc("/serials/", handleSerialByNumber(db))
	mux.HandleFunc("/customers", handleCustomers(db))
	mux.HandleFunc("/customers/", handleCustomerByID(db))
	mux.HandleFunc("/checkout", handleCheckout(db, ledger, log))
	mux.HandleFunc("/orders", handleOrders(db))
	mux.HandleFunc("/orders/", handleOrderByID(db))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Info("server starting", "port", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil {
		log.Fatal("server error", "error", err)
	}
}

func handleProducts(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		switch r.Method {
		case http.MethodPost:
			var req struct {
				SKU      string  `json:"sku"`
				Name     string  `json:"name"`
				Category string  `json:"category"`
				Price    float64 `json:"price"`
				Quantity int     `json:"quantity"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}

			price := decimal.NewFromFloat(req.Price)
			product, err := store.CreateProduct(ctx, db, req.SKU, req.Name, req.Category, price, req.Quantity)
			if err != nil {
				respondDomainError(w, err)
				return
			}

			respondJSON(w, http.StatusCreated, product)

		case http.MethodGet:
			page, pageSize := pageParams(r)
			result, err := store.ListProducts(ctx, db, page, pageSize)
			if err != nil {
				respondDomainError(w, err)
				return
			}

			respondJSON(w, http.StatusOK, result)

		default:
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

func handleProductByID(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		idStr := strings.TrimPrefix(r.URL.Path, "/products/")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid product ID")
			return
		}

		product, err := store.GetProduct(ctx, db, id)
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, product)
	}
}

func handleSerials(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		switch r.Method {
		case http.MethodPost:
			var req struct {
				ProductID      int64  `json:"product_id"`
				SerialNumber   string `json:"serial_number"`
				ConditionGrade string `json:"condition_grade"`
				Location       string `json:"location"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}

			unit, err := store.ReceiveSerialUnit(ctx, db, req.ProductID, req.SerialNumber, req.ConditionGrade, req.Location)
			if err != nil {
				respondDomainError(w, err)
				return
			}

			respondJSON(w, http.StatusCreated, unit)

		case http.MethodGet:
			productID, err := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
			if err != nil {
				respondError(w, http.StatusBadRequest, "product_id is required")
				return
			}

			units, err := store.ListAvailableSerialUnits(ctx, db, productID)
			if err != nil {
				respondDomainError(w, err)
				return
			}

			respondJSON(w, http.StatusOK, units)

		default:
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

func handleSerialByNumber(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		serialNumber := strings.TrimPrefix(r.URL.Path, "/serials/")
		if serialNumber == "" {
			respondError(w, http.StatusBadRequest, "Serial number is required")
			return
		}

		unit, err := store.GetSerialUnit(ctx, db, serialNumber)
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, unit)
	}
}

func handleCustomers(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		switch r.Method {
		case http.MethodPost:
			var req struct {
				Name    string `json:"name"`
				Phone   string `json:"phone"`
				Email   string `json:"email"`
				Address string `json:"address"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}

			customer, err := store.CreateCustomer(ctx, db, req.Name, req.Phone, req.Email, req.Address)
			if err != nil {
				respondDomainError(w, err)
				return
			}

			respondJSON(w, http.StatusCreated, customer)

		case http.MethodGet:
			name := r.URL.Query().Get("name")
			phone := r.URL.Query().Get("phone")
			if name != "" || phone != "" {
				matches, err := store.FindByNameOrPhone(ctx, db, name, phone)
				if err != nil {
					respondDomainError(w, err)
					return
				}
				respondJSON(w, http.StatusOK, matches)
				return
			}

			page, pageSize := pageParams(r)
			result, err := store.ListCustomers(ctx, db, page, pageSize)
			if err != nil {
				respondDomainError(w, err)
				return
			}

			respondJSON(w, http.StatusOK, result)

		default:
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

func handleCustomerByID(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		idStr := strings.TrimPrefix(r.URL.Path, "/customers/")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid customer ID")
			return
		}

		customer, err := store.GetCustomer(ctx, db, id)
		if err != nil {
			respondDomainError(w, err)
			return
		}

		totalSpent, totalOrders, err := store.CustomerStats(ctx, db, customer)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		customer.TotalSpent = totalSpent
		customer.TotalOrders = totalOrders

		respondJSON(w, http.StatusOK, customer)
	}
}

func handleCheckout(db *sql.DB, ledger *store.Ledger, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		var req struct {
			Customer struct {
				ID      int64  `json:"id"`
				Name    string `json:"name"`
				Phone   string `json:"phone"`
				Email   string `json:"email"`
				Address string `json:"address"`
			} `json:"customer"`
			Items []struct {
				ProductID    int64   `json:"product_id"`
				Quantity     int     `json:"quantity"`
				UnitPrice    float64 `json:"unit_price"`
				SerialNumber string  `json:"serial_number"`
			} `json:"items"`
			PaymentMethod  string `json:"payment_method"`
			Notes          string `json:"notes"`
			IdempotencyKey string `json:"idempotency_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		var items []store.SubmitItem
		for _, item := range req.Items {
			items = append(items, store.SubmitItem{
				ProductID:    item.ProductID,
				Quantity:     item.Quantity,
				UnitPrice:    decimal.NewFromFloat(item.UnitPrice),
				SerialNumber: item.SerialNumber,
			})
		}

		result, err := ledger.Submit(ctx, db, store.SubmitRequest{
			Customer: store.CustomerSelection{
				ID:      req.Customer.ID,
				Name:    req.Customer.Name,
				Phone:   req.Customer.Phone,
				Email:   req.Customer.Email,
				Address: req.Customer.Address,
			},
			Items:          items,
			PaymentMethod:  req.PaymentMethod,
			Notes:          req.Notes,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			log.Warn("checkout rejected", "error", err)
			respondDomainError(w, err)
			return
		}

		log.Info("checkout completed",
			"order_number", result.Order.OrderNumber,
			"total", result.Order.TotalAmount,
			"customer_id", result.CustomerID,
			"ambiguous", result.CustomerAmbiguous)

		respondJSON(w, http.StatusCreated, result)
	}
}

func handleOrders(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if r.Method != http.MethodGet {
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		cursor := r.URL.Query().Get("cursor")
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit < 1 || limit > 100 {
			limit = 20
		}

		name := r.URL.Query().Get("customer_name")
		phone := r.URL.Query().Get("customer_phone")

		var result *store.CursorPage
		var err error
		if name != "" || phone != "" {
			result, err = store.ListOrdersForCustomer(ctx, db, name, phone, cursor, limit)
		} else {
			result, err = store.ListOrdersCursor(ctx, db, cursor, limit)
		}
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, result)
	}
}

func handleOrderByID(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		idStr := strings.TrimPrefix(r.URL.Path, "/orders/")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid order ID")
			return
		}

		order, err := store.GetOrder(ctx, db, id)
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, order)
	}
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case database.IsValidation(err), errors.Is(err, database.ErrDuplicateSerialInCart):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrSerialNotFound),
		errors.Is(err, database.ErrCustomerNotFound),
		errors.Is(err, database.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case database.IsInsufficientStock(err),
		database.IsSerialAlreadySold(err),
		errors.Is(err, database.ErrDuplicateSubmission),
		errors.Is(err, database.ErrCustomerAmbiguous):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
