package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/normalize"
	"github.com/ppiankov/dealdesk/internal/store"
)

// seedFile is the YAML layout accepted by `dealdesk seed`
type seedFile struct {
	HealthSystems []seedEntity `yaml:"health_systems"`
	CoInvestors   []seedEntity `yaml:"co_investors"`
	Companies     []seedEntity `yaml:"companies"`
}

type seedEntity struct {
	Name            string `yaml:"name"`
	Website         string `yaml:"website"`
	City            string `yaml:"city"`
	State           string `yaml:"state"`
	Country         string `yaml:"country"`
	Description     string `yaml:"description"`
	CompanyType     string `yaml:"company_type"`
	Category        string `yaml:"category"`
	InvestmentFocus string `yaml:"investment_focus"`
	AllianceMember  *bool  `yaml:"alliance_member"`
	LimitedPartner  *bool  `yaml:"limited_partner"`

	// LeadSource names the health system that introduced a company; any
	// other text is stored as an OTHER lead source.
	LeadSource string `yaml:"lead_source"`

	// VenturePartnerOf names the health system a co-investor was set up with
	VenturePartnerOf string `yaml:"venture_partner_of"`
}

type seedSummary struct {
	Created  int
	Existing int
}

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load health systems, co-investors and companies into the store",
	Long: `Seed loads reference records from a YAML file. Records whose name already
exists are left untouched, so seeding the same file twice is safe.

Example file:
  health_systems:
    - name: Mercy General
      website: https://mercygeneral.example
      alliance_member: true
  co_investors:
    - name: Mercy Health Ventures
      venture_partner_of: Mercy General
  companies:
    - name: CarePilot
      lead_source: Mercy General`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open seed file: %w", err)
		}
		defer func() { _ = f.Close() }()

		seed, err := decodeSeed(f)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cmd.Context(), cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close(context.Background()) }()

		summary, err := seedStore(cmd.Context(), s, seed)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Seeded %d record(s), %d already present\n", summary.Created, summary.Existing)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func decodeSeed(r io.Reader) (seedFile, error) {
	var seed seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && err != io.EOF {
		return seed, fmt.Errorf("decode seed file: %w", err)
	}
	return seed, nil
}

// seedStore writes the seed in one transaction: health systems first so
// co-investors and companies can reference them by name.
func seedStore(ctx context.Context, s store.Store, seed seedFile) (seedSummary, error) {
	var summary seedSummary
	err := s.WithTx(ctx, func(tx store.Store) error {
		summary = seedSummary{}
		healthSystems := make(map[string]string)

		for _, e := range seed.HealthSystems {
			fields := e.fields()
			fields.IsAllianceMember = e.AllianceMember
			fields.IsLimitedPartner = e.LimitedPartner
			id, err := findOrCreate(ctx, tx, model.EntityHealthSystem, fields, &summary)
			if err != nil {
				return err
			}
			healthSystems[normalize.ForLookup(e.Name)] = id
		}

		for _, e := range seed.CoInvestors {
			fields := e.fields()
			fields.InvestmentFocus = e.InvestmentFocus
			id, err := findOrCreate(ctx, tx, model.EntityCoInvestor, fields, &summary)
			if err != nil {
				return err
			}
			if e.VenturePartnerOf == "" {
				continue
			}
			hsID, err := healthSystemID(ctx, tx, healthSystems, e.VenturePartnerOf)
			if err != nil {
				return err
			}
			if hsID == "" {
				return fmt.Errorf("co-investor %q: unknown health system %q", e.Name, e.VenturePartnerOf)
			}
			if err := tx.UpsertVenturePartner(ctx, id, hsID); err != nil {
				return fmt.Errorf("venture partner %q: %w", e.Name, err)
			}
		}

		for _, e := range seed.Companies {
			fields := e.fields()
			fields.CompanyType = e.CompanyType
			fields.PrimaryCategory = e.Category
			if e.LeadSource != "" {
				hsID, err := healthSystemID(ctx, tx, healthSystems, e.LeadSource)
				if err != nil {
					return err
				}
				if hsID != "" {
					fields.LeadSourceType = model.LeadSourceHealthSystem
					fields.LeadSourceHealthSystemID = hsID
				} else {
					fields.LeadSourceType = model.LeadSourceOther
					fields.LeadSourceOther = e.LeadSource
				}
			}
			if _, err := findOrCreate(ctx, tx, model.EntityCompany, fields, &summary); err != nil {
				return err
			}
		}
		return nil
	})
	return summary, err
}

func (e seedEntity) fields() model.EntityFields {
	return model.EntityFields{
		Name:                normalize.Name(e.Name, ""),
		Website:             e.Website,
		HeadquartersCity:    e.City,
		HeadquartersState:   e.State,
		HeadquartersCountry: e.Country,
		Description:         e.Description,
	}
}

func findOrCreate(ctx context.Context, s store.Store, entityType model.EntityType, fields model.EntityFields, summary *seedSummary) (string, error) {
	if fields.Name == "" {
		return "", fmt.Errorf("%s without a name", entityType)
	}
	existing, err := findExact(ctx, s, entityType, fields.Name)
	if err != nil {
		return "", err
	}
	if existing != "" {
		summary.Existing++
		return existing, nil
	}

	rec, err := s.CreateEntity(ctx, entityType, fields)
	if err != nil {
		return "", fmt.Errorf("create %s %q: %w", entityType, fields.Name, err)
	}
	zap.L().Debug("seed: created", zap.String("type", string(entityType)), zap.String("name", rec.Name))
	summary.Created++
	return rec.ID, nil
}

func healthSystemID(ctx context.Context, s store.Store, seeded map[string]string, name string) (string, error) {
	if id, ok := seeded[normalize.ForLookup(name)]; ok {
		return id, nil
	}
	return findExact(ctx, s, model.EntityHealthSystem, name)
}

// findExact returns the id of the record whose name equals name after
// lookup normalization, or "" when none does
func findExact(ctx context.Context, s store.Store, entityType model.EntityType, name string) (string, error) {
	records, err := s.FindEntities(ctx, entityType, name, 20)
	if err != nil {
		return "", fmt.Errorf("find %s %q: %w", entityType, name, err)
	}
	for _, rec := range records {
		if normalize.Equal(rec.Name, name) {
			return rec.ID, nil
		}
	}
	return "", nil
}
