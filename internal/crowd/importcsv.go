package crowd

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"marketprice/internal/model"
)

// guiTimeLayouts covers the timestamp formats seen in requester GUI
// exports.
var guiTimeLayouts = []string{
	time.RFC3339,
	"Mon Jan 2 15:04:05 MST 2006",
	"Mon Jan 02 15:04:05 MST 2006",
	"2006-01-02 15:04:05 MST",
	"2006-01-02T15:04:05Z07:00",
}

// ImportCSV reads a results CSV downloaded from the MTurk requester
// GUI and converts it into tasks and raw reports. The CSV's file name
// (without extension) becomes the batch name. Both the old
// "Answer.available.available" and the newer "Answer.in-stock.in-stock"
// column variants are understood.
func ImportCSV(path string) ([]model.Task, []model.RawReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("crowd: open results CSV: %w", err)
	}
	defer f.Close()

	batchName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("crowd: read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}

	field := func(row []string, name string) (string, bool) {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return "", false
		}
		return row[i], true
	}

	taskSeen := make(map[string]struct{})
	var (
		tasks   []model.Task
		reports []model.RawReport
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("crowd: read CSV row: %w", err)
		}

		taskID, _ := field(row, "HITId")
		taskURL, _ := field(row, "Input.url")
		reportID, _ := field(row, "AssignmentId")
		if taskID == "" || reportID == "" {
			continue
		}

		if _, dup := taskSeen[taskID]; !dup {
			taskSeen[taskID] = struct{}{}
			parsed, err := url.Parse(taskURL)
			if err != nil {
				return nil, nil, fmt.Errorf("crowd: parse url %q: %w", taskURL, err)
			}
			created, _ := field(row, "CreationTime")
			creationTime, err := parseGUITime(created)
			if err != nil {
				return nil, nil, err
			}
			tasks = append(tasks, model.Task{
				TaskID:       taskID,
				CreationTime: creationTime,
				BatchName:    batchName,
				URL:          taskURL,
				DomainName:   parsed.Host,
			})
		}

		inStockRaw, ok := field(row, "Answer.available.available")
		if !ok {
			inStockRaw, _ = field(row, "Answer.in-stock.in-stock")
		}
		inStock := inStockRaw == "true"

		quantityRaw, _ := field(row, "Answer.quantity")
		quantity := ParseQuantity(quantityRaw)

		var rawPrice *string
		if p, ok := field(row, "Answer.price"); ok && p != "" {
			rawPrice = &p
		}
		priceCents, currency, err := ParsePriceCurrency(rawPrice, inStock, reportID)
		if err != nil {
			return nil, nil, err
		}

		acceptRaw, _ := field(row, "AcceptTime")
		acceptTime, err := parseGUITime(acceptRaw)
		if err != nil {
			return nil, nil, err
		}
		submitRaw, _ := field(row, "SubmitTime")
		submitTime, err := parseGUITime(submitRaw)
		if err != nil {
			return nil, nil, err
		}

		reports = append(reports, model.RawReport{
			ReportID:   reportID,
			TaskID:     taskID,
			AcceptTime: acceptTime,
			SubmitTime: submitTime,
			InStock:    inStock,
			PriceCents: priceCents,
			Currency:   currency,
			Quantity:   quantity,
		})
	}

	return tasks, reports, nil
}

func parseGUITime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range guiTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("crowd: unrecognized timestamp %q", raw)
}

// LoadURLs collects the product URLs from every CSV file in dir. Each
// file's first column holds the URLs; the first row is a header.
func LoadURLs(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("crowd: glob url files: %w", err)
	}

	var urls []string
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("crowd: open url file: %w", err)
		}
		cr := csv.NewReader(f)
		cr.FieldsPerRecord = -1
		first := true
		for {
			row, err := cr.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("crowd: read url file %q: %w", p, err)
			}
			if first {
				first = false
				continue
			}
			if len(row) > 0 && strings.TrimSpace(row[0]) != "" {
				urls = append(urls, strings.TrimSpace(row[0]))
			}
		}
		f.Close()
	}
	return urls, nil
}
