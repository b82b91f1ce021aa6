package cart

import (
	"errors"

	"github.com/minhng/go-pos-ledger/internal/models"
	"github.com/minhng/go-pos-ledger/internal/store"
	"github.com/shopspring/decimal"
)

var (
	ErrSerialUnavailable      = errors.New("serial unit is not available")
	ErrOutOfStock             = errors.New("no remaining stock for product")
	ErrSerialProductMismatch  = errors.New("serial unit belongs to a different product")
	ErrDuplicateSerial        = errors.New("serial already in cart")
	ErrSerializedQuantityEdit = errors.New("serialized lines have fixed quantity 1")
	ErrLineNotFound           = errors.New("cart line not found")
)

// Line is one intended purchase. UnitPrice is snapshotted when the line is
// added and survives later catalog price changes. Serialized lines carry
// exactly one physical unit each.
type Line struct {
	ProductID    int64
	ProductName  string
	Quantity     int
	UnitPrice    decimal.Decimal
	SerialNumber string
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is session-local and ephemeral. Nothing here touches persisted
// state; binding a serial is a logical claim only, settled at submit time.
type Cart struct {
	lines []Line
}

func New() *Cart {
	return &Cart{}
}

// Add puts a product in the cart. With a serial the unit must be available,
// belong to the product, and not already be bound to another line. Without
// one, the product's open line grows by qty, clamped to remaining stock.
func (c *Cart) Add(product *models.Product, serial *models.SerialUnit, qty int) error {
	if serial != nil {
		if serial.Status != models.SerialStatusAvailable {
			return ErrSerialUnavailable
		}
		if serial.ProductID != product.ID {
			return ErrSerialProductMismatch
		}
		if c.findSerial(serial.SerialNumber) >= 0 {
			return ErrDuplicateSerial
		}
		c.lines = append(c.lines, Line{
			ProductID:    product.ID,
			ProductName:  product.Name,
			Quantity:     1,
			UnitPrice:    product.Price,
			SerialNumber: serial.SerialNumber,
		})
		return nil
	}

	if qty < 1 {
		qty = 1
	}

	remaining := c.remainingStock(product)
	if remaining < 1 {
		return ErrOutOfStock
	}

	idx := c.findOpenLine(product.ID)
	if idx < 0 {
		c.lines = append(c.lines, Line{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    clamp(qty, 1, remaining),
			UnitPrice:   product.Price,
		})
		return nil
	}

	c.lines[idx].Quantity = clamp(c.lines[idx].Quantity+qty, 1, remaining)
	return nil
}

// UpdateQuantity sets a non-serialized line's quantity, clamped to
// [1, product.quantity]; zero removes the line. Serialized lines reject
// quantity edits.
func (c *Cart) UpdateQuantity(product *models.Product, serialNumber string, qty int) error {
	if serialNumber != "" {
		if c.findSerial(serialNumber) < 0 {
			return ErrLineNotFound
		}
		return ErrSerializedQuantityEdit
	}

	idx := c.findOpenLine(product.ID)
	if idx < 0 {
		return ErrLineNotFound
	}

	if qty == 0 {
		c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
		return nil
	}

	remaining := c.remainingStock(product)
	if remaining < 1 {
		return ErrOutOfStock
	}
	c.lines[idx].Quantity = clamp(qty, 1, remaining)
	return nil
}

// Remove drops a line. With serialNumber set it targets the bound line,
// otherwise the product's open line.
func (c *Cart) Remove(productID int64, serialNumber string) error {
	var idx int
	if serialNumber != "" {
		idx = c.findSerial(serialNumber)
	} else {
		idx = c.findOpenLine(productID)
	}
	if idx < 0 {
		return ErrLineNotFound
	}
	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	return nil
}

// Total is recomputed from the lines on every call.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// ToSubmitItems converts the cart into the ledger's request shape, carrying
// the add-time price snapshots through to submission.
func (c *Cart) ToSubmitItems() []store.SubmitItem {
	items := make([]store.SubmitItem, 0, len(c.lines))
	for _, line := range c.lines {
		items = append(items, store.SubmitItem{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			SerialNumber: line.SerialNumber,
		})
	}
	return items
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

func (c *Cart) Clear() {
	c.lines = nil
}

// remainingStock is how many units of the product a non-serialized line may
// still claim: catalog quantity minus the units already bound by serial.
func (c *Cart) remainingStock(product *models.Product) int {
	bound := 0
	for _, line := range c.lines {
		if line.ProductID == product.ID && line.SerialNumber != "" {
			bound++
		}
	}
	return product.Quantity - bound
}

func (c *Cart) findOpenLine(productID int64) int {
	for i, line := range c.lines {
		if line.ProductID == productID && line.SerialNumber == "" {
			return i
		}
	}
	return -1
}

func (c *Cart) findSerial(serialNumber string) int {
	for i, line := range c.lines {
		if line.SerialNumber == serialNumber {
			return i
		}
	}
	return -1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
