package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"usbbw/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() = %v, want defaults without error", err)
	}
	if cfg.Settings.RefreshMS != 1000 || cfg.Settings.Theme != "dark" || !cfg.Settings.UseBits {
		t.Errorf("defaults = %+v", cfg.Settings)
	}
}

func TestLoadOrDefaultEmptyPathUsesDefaultLocation(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.yaml", "products:\n  \"0d28:0204\": \"CI Board\"\n")
	t.Setenv("USBBW_CONFIG", path)

	// No explicit --config resolves the same file label set writes to.
	cfg := LoadOrDefault("")
	if cfg.Products["0d28:0204"] != "CI Board" {
		t.Errorf("products = %+v, want label from default path", cfg.Products)
	}
}

func TestLoadDefaultsSurviveSparseFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.yaml", "settings:\n  theme: light\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Settings.Theme != "light" {
		t.Errorf("theme = %q", cfg.Settings.Theme)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Settings.RefreshMS != 1000 || !cfg.Settings.UseBits {
		t.Errorf("settings = %+v, want untouched defaults", cfg.Settings)
	}
}

func TestLoadInheritanceChildWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
settings:
  refresh_ms: 250
products:
  "0d28:0204": "Base Board"
  "046d:085e": "Base Camera"
`)
	child := writeFile(t, dir, "child.yaml", `
inherit: base.yaml
products:
  "046d:085e": "Desk Camera"
devices:
  "1-2": "Left Port Thing"
`)

	cfg, err := Load(child)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Settings.RefreshMS != 250 {
		t.Errorf("refresh_ms = %d, want inherited 250", cfg.Settings.RefreshMS)
	}
	if cfg.Products["0d28:0204"] != "Base Board" {
		t.Error("parent-only product entry lost")
	}
	if cfg.Products["046d:085e"] != "Desk Camera" {
		t.Errorf("overridden product = %q, want child value", cfg.Products["046d:085e"])
	}
	if cfg.Devices["1-2"] != "Left Port Thing" {
		t.Error("child-only device entry lost")
	}
}

func TestLoadInheritListOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "products:\n  k: from-a\n  only-a: a\n")
	writeFile(t, dir, "b.yaml", "products:\n  k: from-b\n  only-b: b\n")
	child := writeFile(t, dir, "c.yaml", "inherit:\n  - a.yaml\n  - b.yaml\n")

	cfg, err := Load(child)
	if err != nil {
		t.Fatal(err)
	}
	// Later parents override earlier ones; child still wins over both.
	if cfg.Products["k"] != "from-b" {
		t.Errorf("k = %q, want later parent to win", cfg.Products["k"])
	}
	if cfg.Products["only-a"] != "a" || cfg.Products["only-b"] != "b" {
		t.Error("entries unique to one parent must survive the merge")
	}
}

func TestLoadArraysConcatParentFirst(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
mermaid:
  hide_paths: ["1-1", "1-2"]
`)
	child := writeFile(t, dir, "c.yaml", `
inherit: base.yaml
mermaid:
  hide_paths: ["2-4"]
`)

	cfg, err := Load(child)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"1-1", "1-2", "2-4"}
	if len(cfg.Mermaid.HidePaths) != len(want) {
		t.Fatalf("hide_paths = %v, want %v", cfg.Mermaid.HidePaths, want)
	}
	for i := range want {
		if cfg.Mermaid.HidePaths[i] != want[i] {
			t.Fatalf("hide_paths = %v, want %v", cfg.Mermaid.HidePaths, want)
		}
	}
}

func TestLoadCycleFailsFast(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "inherit: b.yaml\n")
	path := writeFile(t, dir, "b.yaml", "inherit: a.yaml\n")

	_, err := Load(path)
	if !errors.Is(err, ErrConfigCycle) {
		t.Fatalf("Load() error = %v, want ErrConfigCycle", err)
	}
}

func TestLoadParseError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", "settings: [unclosed\n")

	_, err := Load(path)
	if !errors.Is(err, ErrConfigParse) {
		t.Fatalf("Load() error = %v, want ErrConfigParse", err)
	}
}

func TestMergeValueGrid(t *testing.T) {
	parse := func(s string) any {
		var v any
		if err := yaml.Unmarshal([]byte(s), &v); err != nil {
			t.Fatal(err)
		}
		return v
	}

	got := mergeValue(parse("a: {x: 1, y: 2}"), parse("a: {y: 3, z: 4}"))
	a := got.(map[string]any)["a"].(map[string]any)
	if a["x"] != 1 || a["y"] != 3 || a["z"] != 4 {
		t.Errorf("map merge = %v", a)
	}

	got = mergeValue(parse("[1, 2]"), parse("[3]"))
	seq := got.([]any)
	if len(seq) != 3 || seq[0] != 1 || seq[2] != 3 {
		t.Errorf("sequence merge = %v", seq)
	}

	if got := mergeValue(parse("5"), parse("7")); got != 7 {
		t.Errorf("scalar merge = %v, want overlay", got)
	}

	// Kind mismatch: overlay replaces wholesale.
	got = mergeValue(parse("{k: v}"), parse("[1]"))
	if _, ok := got.([]any); !ok {
		t.Errorf("mismatched kinds = %T, want overlay sequence", got)
	}
}

func TestDeviceLabelPriority(t *testing.T) {
	panel := "left"
	cfg := Default()
	cfg.Products["0d28:0204:serial-1"] = "Exact Device"
	cfg.Products["0d28:0204"] = "Any Such Device"
	cfg.PhysicalPorts = []PortLabel{{Panel: &panel, Label: "Left Panel Port"}}
	cfg.Devices["1-2"] = "Path Label"

	loc := &model.Location{Panel: "left"}

	if got, _ := cfg.DeviceLabel("1-2", 0x0d28, 0x0204, "serial-1", loc); got != "Exact Device" {
		t.Errorf("serial match = %q", got)
	}
	if got, _ := cfg.DeviceLabel("1-2", 0x0d28, 0x0204, "other", loc); got != "Any Such Device" {
		t.Errorf("vid:pid match = %q", got)
	}

	delete(cfg.Products, "0d28:0204")
	if got, _ := cfg.DeviceLabel("1-2", 0x0d28, 0x0204, "other", loc); got != "Left Panel Port" {
		t.Errorf("location match = %q", got)
	}
	if got, _ := cfg.DeviceLabel("1-2", 0x0d28, 0x0204, "other", nil); got != "Path Label" {
		t.Errorf("path match = %q", got)
	}

	delete(cfg.Devices, "1-2")
	if _, ok := cfg.DeviceLabel("1-2", 0x0d28, 0x0204, "other", nil); ok {
		t.Error("no rule should resolve no label")
	}
}

func TestSetProductLabelPreservesDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.yaml", `
inherit: shared.yaml
settings:
  theme: light
products:
  "aaaa:bbbb": "Keep Me"
`)
	writeFile(t, dir, "shared.yaml", "")

	if err := SetProductLabel(path, "0d28:0204", "New Label"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["inherit"] != "shared.yaml" {
		t.Error("inherit key must survive write-back")
	}
	products := doc["products"].(map[string]any)
	if products["aaaa:bbbb"] != "Keep Me" || products["0d28:0204"] != "New Label" {
		t.Errorf("products = %v", products)
	}
}

func TestSetProductLabelCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "c.yaml")
	if err := SetProductLabel(path, "0d28:0204", "Board"); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Products["0d28:0204"] != "Board" {
		t.Errorf("products = %v", cfg.Products)
	}
}

func TestApplyLabels(t *testing.T) {
	top := model.NewTopology()
	top.Controllers["c1"] = &model.Controller{ID: "c1", PCIAddress: "0000:00:14.0", USB2Bus: 1}
	bus := &model.Bus{Num: 1, Speed: model.SpeedHigh, Devices: map[string]*model.Device{}}
	top.Buses[1] = bus

	p, _ := model.ParsePath("1-2")
	bus.Devices["1-2"] = &model.Device{Path: p, VendorID: 0x0d28, ProductID: 0x0204}

	cfg := Default()
	cfg.Controllers["0000:00:14.0"] = "Main xHCI"
	cfg.Buses["1"] = "Front Ports"
	cfg.Products["0d28:0204"] = "Dev Board"

	ApplyLabels(cfg, top)

	if top.Controllers["c1"].Label != "Main xHCI" {
		t.Error("controller label not applied")
	}
	if bus.Label != "Front Ports" {
		t.Error("bus label not applied")
	}
	if bus.Devices["1-2"].Label != "Dev Board" {
		t.Error("device label not applied")
	}
}
