// Package main provides a CLI tool for seeding the catalogs with initial data.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/core/types"
	"pharmastock/internal/domain/catalogs"
	"pharmastock/internal/domain/registers/stock"
	"pharmastock/internal/infrastructure/config"
	"pharmastock/internal/infrastructure/storage/postgres"
	"pharmastock/internal/infrastructure/storage/postgres/catalog_repo"
	"pharmastock/internal/infrastructure/storage/postgres/register_repo"
	"pharmastock/pkg/logger"
)

func main() {
	configFile := flag.String("config", "", "path to config.toml")
	envFile := flag.String("env", ".env", "path to a .env file")
	demo := flag.Bool("demo", false, "also seed demo products with opening lots")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	cfg, err := config.Load(config.Options{ConfigFile: *configFile, EnvFile: *envFile})
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.Database.URL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("connected to database")

	txm := postgres.NewTxManager(pool)
	s := &seeder{
		txm:           txm,
		products:      catalog_repo.NewProductRepo(txm),
		movementTypes: catalog_repo.NewMovementTypeRepo(txm),
		suppliers:     catalog_repo.NewSupplierRepo(txm),
		wards:         catalog_repo.NewWardRepo(txm),
		lots:          register_repo.NewLotRepo(txm),
		log:           log,
	}

	if err := s.txm.RunInTransaction(ctx, s.seedReference); err != nil {
		log.Fatalw("failed to seed reference catalogs", "error", err)
	}
	if *demo {
		if err := s.txm.RunInTransaction(ctx, s.seedDemo); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

type seeder struct {
	txm           *postgres.TxManager
	products      *catalog_repo.ProductRepo
	movementTypes *catalog_repo.MovementTypeRepo
	suppliers     *catalog_repo.SupplierRepo
	wards         *catalog_repo.WardRepo
	lots          *register_repo.LotRepo
	log           *logger.Logger
}

// seedReference upserts the movement types and parties every install needs.
func (s *seeder) seedReference(ctx context.Context) error {
	movementTypes := []catalogs.MovementType{
		{Code: "INV+", Description: "Inventory surplus", Direction: catalogs.DirectionIncoming},
		{Code: "INV-", Description: "Inventory shortage", Direction: catalogs.DirectionOutgoing},
		{Code: "RCV", Description: "Supplier receipt", Direction: catalogs.DirectionIncoming},
		{Code: "WRD", Description: "Ward dispensing", Direction: catalogs.DirectionOutgoing},
		{Code: "EXP", Description: "Expired stock write-off", Direction: catalogs.DirectionOutgoing},
	}
	for _, mt := range movementTypes {
		if err := s.movementTypes.Upsert(ctx, mt); err != nil {
			return fmt.Errorf("movement type %s: %w", mt.Code, err)
		}
	}
	s.log.Infow("seeded movement types", "count", len(movementTypes))

	wards := []catalogs.Ward{
		{Code: "ER", Description: "Emergency room"},
		{Code: "ICU", Description: "Intensive care unit"},
		{Code: "PED", Description: "Pediatrics"},
		{Code: "SURG", Description: "Surgery"},
	}
	for _, w := range wards {
		if err := s.wards.Upsert(ctx, w); err != nil {
			return fmt.Errorf("ward %s: %w", w.Code, err)
		}
	}
	s.log.Infow("seeded wards", "count", len(wards))

	// Fixed ids keep reruns idempotent.
	suppliers := []catalogs.Supplier{
		{ID: id.MustParse("0190a000-0000-7000-8000-000000000001"), Name: "Central Medical Supply"},
		{ID: id.MustParse("0190a000-0000-7000-8000-000000000002"), Name: "Regional Pharma Distribution"},
	}
	for _, sup := range suppliers {
		if err := s.suppliers.Upsert(ctx, sup); err != nil {
			return fmt.Errorf("supplier %s: %w", sup.Name, err)
		}
	}
	s.log.Infow("seeded suppliers", "count", len(suppliers))
	return nil
}

type demoLot struct {
	code     string
	prepared string
	due      string
	cost     string
	qty      int64
}

type demoProduct struct {
	code        string
	description string
	lots        []demoLot
}

var demoProducts = []demoProduct{
	{"AMOX500", "Amoxicillin 500 mg capsules", []demoLot{
		{"AMX-2401", "2025-01-10", "2027-01-10", "0.18", 1200},
		{"AMX-2407", "2025-07-02", "2027-07-02", "0.19", 800},
	}},
	{"PARA1G", "Paracetamol 1 g tablets", []demoLot{
		{"PAR-2503", "2025-03-15", "2028-03-15", "0.05", 5000},
	}},
	{"IBU400", "Ibuprofen 400 mg tablets", []demoLot{
		{"IBU-2411", "2024-11-20", "2027-11-20", "0.07", 2400},
	}},
	{"NACL09", "Sodium chloride 0.9% 500 ml", []demoLot{
		{"NAC-2502", "2025-02-01", "2027-02-01", "1.10", 300},
	}},
	{"INSGLA", "Insulin glargine 100 U/ml pen", nil},
}

// seedDemo adds products with opening lots in the main store.
func (s *seeder) seedDemo(ctx context.Context) error {
	for _, dp := range demoProducts {
		existing, err := s.products.GetByCode(ctx, dp.code)
		if err != nil && !apperror.IsNotFound(err) {
			return err
		}
		if existing != nil {
			s.log.Infow("product already exists, skipping", "code", dp.code)
			continue
		}

		product := &catalogs.Product{Code: dp.code, Description: dp.description}
		for _, l := range dp.lots {
			product.ReceivedQty = product.ReceivedQty.Add(types.NewQuantity(l.qty))
		}
		if err := s.products.Upsert(ctx, product); err != nil {
			return fmt.Errorf("product %s: %w", dp.code, err)
		}

		for _, l := range dp.lots {
			lot, err := l.build(product.ID)
			if err != nil {
				return fmt.Errorf("lot %s: %w", l.code, err)
			}
			if err := s.lots.Create(ctx, lot); err != nil {
				return fmt.Errorf("lot %s: %w", l.code, err)
			}
		}
		s.log.Infow("seeded product", "code", dp.code, "lots", len(dp.lots))
	}
	return nil
}

func (l demoLot) build(productID id.ID) (*stock.Lot, error) {
	prepared, err := time.Parse(time.DateOnly, l.prepared)
	if err != nil {
		return nil, err
	}
	due, err := time.Parse(time.DateOnly, l.due)
	if err != nil {
		return nil, err
	}
	cost, err := decimal.NewFromString(l.cost)
	if err != nil {
		return nil, err
	}
	return &stock.Lot{
		Code:            l.code,
		ProductID:       productID,
		PreparationDate: prepared,
		DueDate:         due,
		Cost:            decimal.NewNullDecimal(cost),
		MainStoreQty:    types.NewQuantity(l.qty),
	}, nil
}
