package ledger

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ChartSeed is a chart of accounts described in YAML:
//
//	currency: USD
//	accounts:
//	  - code: "1000"
//	    name: Cash and banks
//	    type: ASSET
//	    children:
//	      - {code: "1010", name: Operating account, type: ASSET, subtype: BANK_CHECKING}
type ChartSeed struct {
	Currency string        `yaml:"currency"`
	Accounts []AccountSeed `yaml:"accounts"`
}

// AccountSeed is one account of a ChartSeed. Children inherit the type when theirs is empty.
type AccountSeed struct {
	Code        string        `yaml:"code"`
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"`
	Subtype     string        `yaml:"subtype,omitempty"`
	Currency    string        `yaml:"currency,omitempty"`
	Description string        `yaml:"description,omitempty"`
	Control     bool          `yaml:"control,omitempty"`
	System      bool          `yaml:"system,omitempty"`
	Children    []AccountSeed `yaml:"children,omitempty"`
}

// ParseChartSeed decodes a seed, rejecting unknown keys
func ParseChartSeed(r io.Reader) (*ChartSeed, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var seed ChartSeed
	if err := dec.Decode(&seed); err != nil {
		if err == io.EOF {
			return &seed, nil
		}
		return nil, fmt.Errorf("decode chart seed: %w", err)
	}
	return &seed, nil
}

// LoadChartSeed reads and decodes a seed file
func LoadChartSeed(path string) (*ChartSeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chart seed: %w", err)
	}
	defer f.Close()
	return ParseChartSeed(f)
}

// ChartImportResult lists what an import did
type ChartImportResult struct {
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}

// ImportChart creates every seeded account whose code does not exist yet, parents
// before children, in a single transaction. Existing codes are skipped so the same
// seed can be applied on every start.
func (s *AccountService) ImportChart(ctx context.Context, seed *ChartSeed) (result *ChartImportResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account", "import_chart")
	defer func() { telemetry.End(span, err) }()

	result = &ChartImportResult{}
	err = s.txm.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, a := range seed.Accounts {
			if err := s.importSeed(ctx, a, nil, seed.Currency, result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	telemetry.SetAttributes(span, "created", len(result.Created), "skipped", len(result.Skipped))
	s.opts.logger.Info("Chart of accounts imported",
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func (s *AccountService) importSeed(ctx context.Context, seed AccountSeed, parent *ledger.Account, currency string, result *ChartImportResult) error {
	if seed.Type == "" && parent != nil {
		seed.Type = string(parent.Type)
	}
	if seed.Currency == "" {
		seed.Currency = currency
	}

	account, err := s.accounts.FindByCode(ctx, seed.Code)
	switch {
	case err == nil:
		result.Skipped = append(result.Skipped, seed.Code)
	case isNotFound(err):
		cmd := CreateAccountCommand{
			AccountCode:      seed.Code,
			AccountName:      seed.Name,
			AccountType:      seed.Type,
			Subtype:          seed.Subtype,
			Currency:         seed.Currency,
			Description:      seed.Description,
			IsControlAccount: seed.Control,
			IsSystemAccount:  seed.System,
		}
		if parent != nil {
			id := parent.ID
			cmd.ParentAccountID = &id
		}
		if account, err = s.create(ctx, cmd); err != nil {
			return fmt.Errorf("account %s: %w", seed.Code, err)
		}
		result.Created = append(result.Created, seed.Code)
	default:
		return err
	}

	for _, child := range seed.Children {
		if err := s.importSeed(ctx, child, account, seed.Currency, result); err != nil {
			return err
		}
	}
	return nil
}
