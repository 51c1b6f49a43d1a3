package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"payway/config"
	"payway/core/state"
	"payway/crypto"
	"payway/native/storefront"
	"payway/native/token"
	"payway/storage"
)

// payway-audit exports the payment log of a data directory as CSV and Parquet
// artefacts for offline reconciliation.

func main() {
	configPath := flag.String("config", "./config.toml", "Path to node configuration file")
	outDir := flag.String("out", ".", "Directory for exported artefacts")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	owner, err := cfg.OwnerAddress()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve owner: %v\n", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	engine := storefront.NewEngine(manager, token.NewLedger(manager, owner), owner)

	payments, err := engine.Payments()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read payment log: %v\n", err)
		os.Exit(1)
	}

	stamp := time.Now().UTC().Format("20060102T150405Z")
	csvPath := filepath.Join(*outDir, "payments-"+stamp+".csv")
	if err := writeCSV(csvPath, payments); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	parquetPath := filepath.Join(*outDir, "payments-"+stamp+".parquet")
	if err := writeParquet(parquetPath, payments); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (%d rows)\n", csvPath, len(payments))
	fmt.Printf("wrote %s (%d rows)\n", parquetPath, len(payments))
}

var csvHeader = []string{"sequence", "payer", "item_id", "handle", "quantity", "note", "currency", "amount", "paid_at"}

func writeCSV(path string, payments []*storefront.Payment) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audit: create csv: %w", err)
	}
	defer file.Close()
	w := csv.NewWriter(file)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("audit: write csv header: %w", err)
	}
	for _, p := range payments {
		row := []string{
			strconv.FormatUint(p.Sequence, 10),
			crypto.MustNewAddress(p.Payer[:]).String(),
			strconv.FormatUint(p.ItemID, 10),
			strconv.FormatUint(p.Handle, 10),
			strconv.FormatUint(p.Quantity, 10),
			p.Note,
			p.Currency.String(),
			p.Amount.String(),
			time.Unix(p.PaidAt, 0).UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("audit: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("audit: flush csv: %w", err)
	}
	return nil
}

type parquetRow struct {
	Sequence int64  `parquet:"name=sequence, type=INT64"`
	Payer    string `parquet:"name=payer, type=BYTE_ARRAY, convertedtype=UTF8"`
	ItemID   int64  `parquet:"name=item_id, type=INT64"`
	Handle   int64  `parquet:"name=handle, type=INT64"`
	Quantity int64  `parquet:"name=quantity, type=INT64"`
	Note     string `parquet:"name=note, type=BYTE_ARRAY, convertedtype=UTF8"`
	Currency string `parquet:"name=currency, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount   string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	PaidAt   string `parquet:"name=paid_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func writeParquet(path string, payments []*storefront.Payment) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audit: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("audit: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, p := range payments {
		row := &parquetRow{
			Sequence: int64(p.Sequence),
			Payer:    crypto.MustNewAddress(p.Payer[:]).String(),
			ItemID:   int64(p.ItemID),
			Handle:   int64(p.Handle),
			Quantity: int64(p.Quantity),
			Note:     p.Note,
			Currency: p.Currency.String(),
			Amount:   p.Amount.String(),
			PaidAt:   time.Unix(p.PaidAt, 0).UTC().Format(time.RFC3339),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("audit: write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("audit: finalize parquet: %w", err)
	}
	return file.Close()
}
