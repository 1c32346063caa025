package report

import (
	"encoding/xml"
	"fmt"

	"go.uber.org/multierr"

	"github.com/mr1hm/go-weather-warnings/internal/models"
)

// cityWarningType is the Warning block that carries per-municipality status.
// The VPWW54 body repeats the same data at prefecture and subdivision level;
// only the municipality block is diffed.
const cityWarningType = "気象警報・注意報（市町村等）"

type vpww54 struct {
	XMLName xml.Name      `xml:"Report"`
	Control vpww54Control `xml:"Control"`
	Body    vpww54Body    `xml:"Body"`
}

type vpww54Control struct {
	Title            string `xml:"Title"`
	PublishingOffice string `xml:"PublishingOffice"`
}

type vpww54Body struct {
	Warnings []vpww54Warning `xml:"Warning"`
}

type vpww54Warning struct {
	Type  string       `xml:"type,attr"`
	Items []vpww54Item `xml:"Item"`
}

type vpww54Item struct {
	Kinds []vpww54Kind `xml:"Kind"`
	Area  vpww54Area   `xml:"Area"`
}

type vpww54Kind struct {
	Name   string `xml:"Name"`
	Status string `xml:"Status"`
}

type vpww54Area struct {
	Name string `xml:"Name"`
	Code string `xml:"Code"`
}

// Parse extracts (city, kind, status) tuples from one VPWW54 document.
// Only cities present in the monitor list are returned; unknown cities are
// skipped silently. A kind whose status text is unrecognized yields an error
// for that entry only; all other entries still parse, and the partial result
// is returned alongside the combined error. Parsing is pure: identical bytes
// always produce identical output.
func Parse(data []byte, xmlFile string, cities []string) ([]models.ParsedWarning, error) {
	var doc vpww54
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error decoding report: %w", err)
	}

	monitored := make(map[string]bool, len(cities))
	for _, c := range cities {
		monitored[c] = true
	}

	var (
		parsed []models.ParsedWarning
		errs   error
	)
	for _, w := range doc.Body.Warnings {
		if w.Type != cityWarningType {
			continue
		}
		for _, item := range w.Items {
			if !monitored[item.Area.Name] {
				continue
			}
			for _, kind := range item.Kinds {
				if kind.Name == "" {
					// "発表警報・注意報はなし" placeholder entries carry no kind.
					continue
				}
				status, err := models.ParseWarningStatus(kind.Status)
				if err != nil {
					errs = multierr.Append(errs, fmt.Errorf("city %s kind %s: %w", item.Area.Name, kind.Name, err))
					continue
				}
				parsed = append(parsed, models.ParsedWarning{
					City:    item.Area.Name,
					LMO:     doc.Control.PublishingOffice,
					Kind:    kind.Name,
					Status:  status,
					XMLFile: xmlFile,
				})
			}
		}
	}

	return parsed, errs
}
