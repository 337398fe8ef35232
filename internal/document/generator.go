package document

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/payroll-engine/internal/employee"
	"github.com/frahmantamala/payroll-engine/internal/money"
	"github.com/frahmantamala/payroll-engine/internal/payroll"
)

// FileGenerator writes payslips as plain text files under a storage
// directory and returns the URL they are served from.
type FileGenerator struct {
	storageDir string
	baseURL    string
	logger     *slog.Logger
}

func NewFileGenerator(storageDir, baseURL string, logger *slog.Logger) (*FileGenerator, error) {
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create payslip storage dir %s: %w", storageDir, err)
	}
	return &FileGenerator{
		storageDir: storageDir,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}, nil
}

// GeneratePayslip renders the settlement document for one paid item. The
// caller treats any error as fatal to the whole processing transition.
func (g *FileGenerator) GeneratePayslip(item *payroll.Item, emp *employee.Employee, run *payroll.Run) (string, error) {
	filename := fmt.Sprintf("payslip-%d-%d-%s.txt", run.ID, item.EmployeeID, uuid.NewString()[:8])
	path := filepath.Join(g.storageDir, filename)

	content := renderPayslip(item, emp, run)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write payslip %s: %w", path, err)
	}

	g.logger.Info("payslip generated",
		"run_id", run.ID,
		"employee_id", item.EmployeeID,
		"file", filename)

	return g.baseURL + "/" + filename, nil
}

func renderPayslip(item *payroll.Item, emp *employee.Employee, run *payroll.Run) string {
	var b strings.Builder

	fmt.Fprintf(&b, "PAYSLIP\n")
	fmt.Fprintf(&b, "=======\n\n")
	fmt.Fprintf(&b, "Employee:    %s %s\n", emp.FirstName, emp.LastName)
	fmt.Fprintf(&b, "Email:       %s\n", emp.Email)
	fmt.Fprintf(&b, "Pay period:  %s - %s\n",
		run.PeriodStart.Format("2006-01-02"), run.PeriodEnd.Format("2006-01-02"))
	fmt.Fprintf(&b, "Pay date:    %s\n", run.PayDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Currency:    %s\n\n", item.Currency)

	fmt.Fprintf(&b, "EARNINGS\n")
	fmt.Fprintf(&b, "  Base salary:   %s\n", money.FormatMajor(item.BaseSalaryMinor))
	if item.OvertimeMinor != 0 {
		fmt.Fprintf(&b, "  Overtime:      %s\n", money.FormatMajor(item.OvertimeMinor))
	}
	if item.BonusMinor != 0 {
		fmt.Fprintf(&b, "  Bonus:         %s\n", money.FormatMajor(item.BonusMinor))
	}
	if item.CommissionMinor != 0 {
		fmt.Fprintf(&b, "  Commission:    %s\n", money.FormatMajor(item.CommissionMinor))
	}
	if item.AllowancesMinor != 0 {
		fmt.Fprintf(&b, "  Allowances:    %s\n", money.FormatMajor(item.AllowancesMinor))
	}
	fmt.Fprintf(&b, "  Gross pay:     %s\n\n", money.FormatMajor(item.GrossPayMinor))

	fmt.Fprintf(&b, "DEDUCTIONS\n")
	for _, line := range item.Taxes {
		if line.EmployeeAmountMinor == 0 {
			continue
		}
		fmt.Fprintf(&b, "  %-14s %s\n", line.TaxType+":", money.FormatMajor(line.EmployeeAmountMinor))
	}
	fmt.Fprintf(&b, "  Total tax:     %s\n\n", money.FormatMajor(item.TotalEmployeeTaxMinor))

	fmt.Fprintf(&b, "NET PAY:         %s\n\n", money.FormatMajor(item.NetPayMinor))

	fmt.Fprintf(&b, "YEAR TO DATE\n")
	fmt.Fprintf(&b, "  Gross:         %s\n", money.FormatMajor(item.YTDGrossMinor))
	fmt.Fprintf(&b, "  Tax:           %s\n\n", money.FormatMajor(item.YTDTaxMinor))

	fmt.Fprintf(&b, "Generated at %s\n", time.Now().UTC().Format(time.RFC3339))

	return b.String()
}
