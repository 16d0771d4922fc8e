// Package sheets reads and writes the Excel workbooks the dashboard uses for
// bulk food import and report downloads.
package sheets

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"dashboard/analytics"
	"dashboard/model"

	"github.com/xuri/excelize/v2"
)

const SheetName = "Sheet1"

var (
	ErrUnreadable = errors.New("sheets: unreadable workbook")
	ErrNoRows     = errors.New("sheets: no data rows")
)

// FoodRow is one importable row: menuId | price | name | description | cookingTime.
type FoodRow struct {
	Row         int
	MenuID      string
	Price       float64
	Name        string
	Description string
	CookingTime int
}

type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ParseFoodSheet reads Sheet1 after its header row. Incomplete or invalid
// rows are skipped and reported rather than failing the whole file.
func ParseFoodSheet(r io.Reader) ([]FoodRow, []SkippedRow, error) {
	xl, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer xl.Close()

	rows, err := xl.GetRows(SheetName)
	if err != nil || len(rows) < 2 {
		return nil, nil, ErrNoRows
	}

	var (
		foods   []FoodRow
		skipped []SkippedRow
	)
	for i, row := range rows[1:] {
		n := i + 2
		if len(row) < 3 {
			skipped = append(skipped, SkippedRow{Row: n, Reason: "incomplete row"})
			continue
		}
		menuID := strings.TrimSpace(row[0])
		if menuID == "" {
			skipped = append(skipped, SkippedRow{Row: n, Reason: "missing menu id"})
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil || price <= 0 {
			skipped = append(skipped, SkippedRow{Row: n, Reason: "invalid price " + strconv.Quote(row[1])})
			continue
		}
		name := strings.TrimSpace(row[2])
		if name == "" {
			skipped = append(skipped, SkippedRow{Row: n, Reason: "missing name"})
			continue
		}

		food := FoodRow{Row: n, MenuID: menuID, Price: price, Name: name}
		if len(row) > 3 {
			food.Description = strings.TrimSpace(row[3])
		}
		if len(row) > 4 && strings.TrimSpace(row[4]) != "" {
			minutes, err := strconv.Atoi(strings.TrimSpace(row[4]))
			if err != nil || minutes < 0 {
				skipped = append(skipped, SkippedRow{Row: n, Reason: "invalid cooking time " + strconv.Quote(row[4])})
				continue
			}
			food.CookingTime = minutes
		}
		foods = append(foods, food)
	}
	return foods, skipped, nil
}

// OrdersWorkbook lays orders out one per row in board order.
func OrdersWorkbook(orders []model.Order) (*excelize.File, error) {
	header := []any{"Order Code", "Status", "Type", "Customer", "Phone", "Items", "Total", "Placed At"}
	rows := make([][]any, 0, len(orders))
	for _, o := range model.SortOrders(orders) {
		placed := ""
		if t, ok := o.PlacedAt(); ok {
			placed = t.Format("2006-01-02 15:04")
		}
		rows = append(rows, []any{
			o.DisplayCode(), string(o.OrderStatus), o.Kind(), o.UserName, o.Phone,
			o.ItemCount(), o.TotalFoodPrice.Float(), placed,
		})
	}
	return workbook("Orders", header, rows)
}

// WithdrawalsWorkbook writes every payout in the groups, the latest of each
// group first.
func WithdrawalsWorkbook(groups []analytics.WithdrawalGroup) (*excelize.File, error) {
	header := []any{"Requester ID", "Requester", "Amount", "Net Amount", "Fee", "Currency", "Status", "Requested At"}
	var rows [][]any
	for _, g := range groups {
		for _, w := range append([]model.Withdrawal{g.Latest}, g.Rest...) {
			rows = append(rows, []any{
				g.RequesterID, g.RequesterName, w.Amount.Float(), w.NetAmount.Float(), w.Fee.Float(),
				w.Currency, w.Status, w.CreatedAt,
			})
		}
	}
	return workbook("Withdrawals", header, rows)
}

func workbook(sheet string, header []any, rows [][]any) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(SheetName, sheet); err != nil {
		f.Close()
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		f.Close()
		return nil, err
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	return f, nil
}
