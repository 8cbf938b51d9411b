// Package export renders cashier and admin reports: official receipts as PDF,
// delinquent account lists as XLSX and daily collections as CSV.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	billing "waterworks/internal/billing/domain"
	registry "waterworks/internal/registry/domain"
)

// Amounts are printed with an ASCII currency label; the core PDF fonts cannot
// render the peso sign.
func pesoText(amount decimal.Decimal) string {
	return "PHP " + amount.StringFixed(2)
}

// BuildReceiptPDF renders the official receipt for a settled bill.
func BuildReceiptPDF(payment *billing.Payment, bill *billing.Bill, consumer *registry.Consumer) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, "Waterworks Official Receipt")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("OR Number: %s", payment.ORNumber))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", payment.PaidAt.Format("2006-01-02 15:04")))
	pdf.Ln(5)
	if consumer != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Account: %s", consumer.AccountNumber))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("Consumer: %s", consumer.FullName()))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("Address: %s", consumer.Address))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Bill: %s", payment.BillID))
	pdf.Ln(5)
	if bill != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Billing Period: %s", bill.BillingPeriod.Format("2006-01")))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("Consumption: %d cu.m.", bill.Consumption))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(90, 6, "Item", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)

	line := func(label, amount string) {
		pdf.CellFormat(90, 6, label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, amount, "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	line("Water Charges", pesoText(payment.OriginalBillAmount))
	if payment.PenaltyWaived {
		line("Penalty (waived)", pesoText(payment.PenaltyAmount))
	} else if !payment.PenaltyAmount.IsZero() {
		line(fmt.Sprintf("Penalty (%d days overdue)", payment.DaysOverdueAtPay), pesoText(payment.PenaltyAmount))
	}
	line("Total", pesoText(payment.TotalWithPenalty()))
	if discount := payment.TotalWithPenalty().Sub(payment.AmountPaid); discount.IsPositive() {
		line("Senior Citizen Discount", pesoText(discount))
	}
	line("Amount Due", pesoText(payment.AmountPaid))
	line("Cash Received", pesoText(payment.ReceivedAmount))
	line("Change", pesoText(payment.Change))

	pdf.Ln(6)
	if payment.ProcessedBy != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Processed by: %s", payment.ProcessedBy))
		pdf.Ln(5)
	}
	if payment.Remarks != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Remarks: %s", payment.Remarks))
		pdf.Ln(5)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DelinquentRow is one overdue bill joined with its consumer.
type DelinquentRow struct {
	AccountNumber string
	ConsumerName  string
	Address       string
	BillID        string
	BillingPeriod time.Time
	DueDate       time.Time
	DaysOverdue   int
	TotalAmount   string
	Penalty       string
	AmountDue     string
}

// BuildDelinquentXLSX renders the delinquent accounts report.
func BuildDelinquentXLSX(rows []DelinquentRow, asOf time.Time) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "delinquent"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Delinquent Accounts")
	_ = f.SetCellValue(sheet, "A2", "As of")
	_ = f.SetCellValue(sheet, "B2", asOf.Format("2006-01-02"))

	headers := []string{"Account", "Consumer", "Address", "Bill", "Period", "Due Date", "Days Overdue", "Bill Amount", "Penalty", "Amount Due"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 4)
		_ = f.SetCellValue(sheet, cell, header)
	}
	for i, row := range rows {
		values := []any{
			row.AccountNumber,
			row.ConsumerName,
			row.Address,
			row.BillID,
			row.BillingPeriod.Format("2006-01"),
			row.DueDate.Format("2006-01-02"),
			row.DaysOverdue,
			row.TotalAmount,
			row.Penalty,
			row.AmountDue,
		}
		for j, value := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+5)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildCollectionsCSV renders payments received in a period as CSV.
func BuildCollectionsCSV(payments []billing.Payment) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"or_number", "bill_id", "paid_at", "bill_amount", "penalty", "penalty_waived", "amount_paid", "received", "change", "processed_by"}
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	for _, payment := range payments {
		record := []string{
			payment.ORNumber,
			payment.BillID,
			payment.PaidAt.Format(time.RFC3339),
			payment.OriginalBillAmount.StringFixed(2),
			payment.PenaltyAmount.StringFixed(2),
			fmt.Sprintf("%t", payment.PenaltyWaived),
			payment.AmountPaid.StringFixed(2),
			payment.ReceivedAmount.StringFixed(2),
			payment.Change.StringFixed(2),
			payment.ProcessedBy,
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
