package catalog

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/observatory/quicklook/pkg/model"
)

func TestNewLoadsEmbeddedDefaults(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	want := []string{"fgs", "miri", "nircam", "niriss", "nirspec"}
	if diff := cmp.Diff(want, c.Instruments()); diff != "" {
		t.Fatalf("instruments mismatch (-want +got):\n%s", diff)
	}

	detectors := c.Options("miri", KindDetectors)
	if len(detectors) == 0 {
		t.Fatalf("expected miri detectors")
	}
	if !c.Valid("miri", KindDetectors, "MIRIMAGE") {
		t.Fatalf("MIRIMAGE should be a valid miri detector")
	}
	if c.Valid("miri", KindDetectors, "NRS1") {
		t.Fatalf("NRS1 is not a miri detector")
	}
}

func TestOptionsUnknownInstrument(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := c.Options("hubble", KindFilters); got != nil {
		t.Fatalf("expected nil for unknown instrument, got %v", got)
	}
}

func TestOptionsUnionAcrossInstruments(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	union := c.Options("", KindAnomalies)
	if len(union) == 0 {
		t.Fatalf("expected shared anomaly union")
	}

	// Instrument-specific entries surface alongside the shared set.
	found := map[string]bool{}
	for _, value := range union {
		found[value] = true
	}
	for _, want := range []string{"snowball", "dragons_breath", "optical_short"} {
		if !found[want] {
			t.Fatalf("union missing %s: %v", want, union)
		}
	}
}

func TestParseRejectsUnknownKind(t *testing.T) {
	_, err := parse([]byte("instruments:\n  miri:\n    colors: [red]\n"))
	if err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestDecoratorFillsEnums(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	form := model.FormModel{
		Fields: []model.Field{
			{
				Name:     "anomalies",
				Type:     model.FieldTypeArray,
				Metadata: map[string]string{"options": "anomalies"},
				Items:    &model.Field{Name: "anomaliesItem", Type: model.FieldTypeString},
			},
		},
		Panels: []model.Panel{
			{
				Name:       "miri",
				Instrument: "miri",
				Fields: []model.Field{
					{
						Name:     "miri_filter",
						Type:     model.FieldTypeString,
						Metadata: map[string]string{"options": "filters"},
					},
				},
			},
		},
	}

	if err := c.Decorator().Decorate(&form); err != nil {
		t.Fatalf("decorate: %v", err)
	}

	if len(form.Fields[0].Enum) == 0 {
		t.Fatalf("anomaly enum not injected")
	}
	if len(form.Fields[0].Items.Enum) != len(form.Fields[0].Enum) {
		t.Fatalf("item enum should mirror field enum")
	}

	filters := form.Panels[0].Fields[0].Enum
	if len(filters) == 0 {
		t.Fatalf("panel filter enum not injected")
	}
	if filters[0] != "F560W" {
		t.Fatalf("expected miri filters, got %v", filters)
	}
}

func TestDecoratorSkipsUntaggedFields(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	form := model.FormModel{
		Fields: []model.Field{{Name: "rootname", Type: model.FieldTypeString}},
	}
	if err := c.Decorator().Decorate(&form); err != nil {
		t.Fatalf("decorate: %v", err)
	}
	if form.Fields[0].Enum != nil {
		t.Fatalf("untagged field should stay enum-free")
	}
}
