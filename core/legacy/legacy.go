// Package legacy holds the static compatibility tables that map names and
// numeric ids from old save formats onto namespaced identifiers.
//
// Two lookup contracts live here and are kept apart by type:
//
//   - ResolveClassName must succeed. A miss means the tables are incomplete and
//     is reported as an *errors.UnknownMappingError.
//   - NumericTable and NameTable lookups may miss. Callers treat a miss as
//     "leave the field alone".
package legacy

import (
	"embed"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/FocuswithJustin/legacyfix/core/errors"
)

// DefaultNamespace is prepended to identifiers that carry no namespace.
const DefaultNamespace = "minecraft"

//go:embed data/*.json
var dataFS embed.FS

// NumericTable maps small integer ids to identifiers. Holes are absent.
type NumericTable struct {
	name    string
	entries []string
	present []bool
}

// Lookup returns the identifier for id, or ok=false when id is out of range
// or a hole.
func (t *NumericTable) Lookup(id int) (string, bool) {
	if id < 0 || id >= len(t.entries) || !t.present[id] {
		return "", false
	}
	return t.entries[id], true
}

// Size returns the number of populated entries.
func (t *NumericTable) Size() int {
	n := 0
	for _, p := range t.present {
		if p {
			n++
		}
	}
	return n
}

// Len returns the capacity of the table, one past the largest id.
func (t *NumericTable) Len() int { return len(t.entries) }

// NameTable maps legacy string ids to replacements.
type NameTable struct {
	name    string
	entries map[string]string
}

// Lookup returns the replacement for key.
func (t *NameTable) Lookup(key string) (string, bool) {
	v, ok := t.entries[key]
	return v, ok
}

// Size returns the number of entries.
func (t *NameTable) Size() int { return len(t.entries) }

// Tables bundles every table loaded from the embedded data files.
type Tables struct {
	classNames map[string]string

	Materials         *NumericTable
	Potions           *NumericTable
	SpawnEggs         *NumericTable
	TileEntities      *NameTable
	Entities          *NameTable
	BlockEntityLegacy *NameTable
	BlockEntityModern *NameTable
}

var (
	loadOnce sync.Once
	loaded   *Tables
	loadErr  error
)

// Load parses the embedded tables on first use and returns the shared,
// read-only result.
func Load() (*Tables, error) {
	loadOnce.Do(func() {
		loaded, loadErr = load()
	})
	return loaded, loadErr
}

// MustLoad is Load for package initialisation paths where the embedded data
// is known to be well formed.
func MustLoad() *Tables {
	t, err := Load()
	if err != nil {
		panic(err)
	}
	return t
}

func load() (*Tables, error) {
	t := &Tables{}
	var err error

	if err = readJSON("class_names", &t.classNames); err != nil {
		return nil, err
	}
	if t.Materials, err = readNumeric("materials", 2268); err != nil {
		return nil, err
	}
	if t.Potions, err = readNumeric("potions", 128); err != nil {
		return nil, err
	}
	if t.SpawnEggs, err = readNumeric("spawn_eggs", 256); err != nil {
		return nil, err
	}
	if t.TileEntities, err = readNames("tile_entities"); err != nil {
		return nil, err
	}
	if t.Entities, err = readNames("entities"); err != nil {
		return nil, err
	}

	var items struct {
		Legacy map[string]string `json:"legacy"`
		Modern map[string]string `json:"modern"`
	}
	if err = readJSON("block_entity_items", &items); err != nil {
		return nil, err
	}
	t.BlockEntityLegacy = &NameTable{name: "block_entity_items.legacy", entries: items.Legacy}
	t.BlockEntityModern = &NameTable{name: "block_entity_items.modern", entries: items.Modern}
	return t, nil
}

func readJSON(name string, v any) error {
	path := "data/" + name + ".json"
	data, err := dataFS.ReadFile(path)
	if err != nil {
		return errors.NewIO("read", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &errors.ParseError{Format: "JSON", Path: path, Message: err.Error(), Err: err}
	}
	return nil
}

// readNumeric loads an index-keyed table. JSON null marks an explicit hole,
// which behaves the same as a missing index.
func readNumeric(name string, size int) (*NumericTable, error) {
	var raw map[string]*string
	if err := readJSON(name, &raw); err != nil {
		return nil, err
	}
	t := &NumericTable{name: name, entries: make([]string, size), present: make([]bool, size)}
	for k, v := range raw {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= size {
			return nil, errors.NewParse("JSON", "data/"+name+".json", "bad index "+k)
		}
		if v != nil {
			t.entries[i] = *v
			t.present[i] = true
		}
	}
	return t, nil
}

func readNames(name string) (*NameTable, error) {
	t := &NameTable{name: name}
	if err := readJSON(name, &t.entries); err != nil {
		return nil, err
	}
	return t, nil
}

// ResolveClassName maps a legacy class-style name such as "EntityHorse" to its
// namespaced identifier.
func (t *Tables) ResolveClassName(name string) (string, error) {
	id, ok := t.classNames[name]
	if !ok {
		return "", errors.NewUnknownMapping("class_names", name)
	}
	return id, nil
}

// BlockEntityForItem returns the block entity id an item's embedded block
// entity tag should carry. Sources older than 515 use the legacy names when
// the legacy table knows the item.
func (t *Tables) BlockEntityForItem(itemID string, source int) (string, bool) {
	key := Namespaced(itemID)
	if source < 515 {
		if v, ok := t.BlockEntityLegacy.Lookup(key); ok {
			return v, true
		}
	}
	return t.BlockEntityModern.Lookup(key)
}

// Info describes one table for listings.
type Info struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Size int    `json:"size"`
}

// Describe lists the loaded tables sorted by name.
func (t *Tables) Describe() []Info {
	out := []Info{
		{Name: "class_names", Kind: "required", Size: len(t.classNames)},
		{Name: t.Materials.name, Kind: "numeric", Size: t.Materials.Size()},
		{Name: t.Potions.name, Kind: "numeric", Size: t.Potions.Size()},
		{Name: t.SpawnEggs.name, Kind: "numeric", Size: t.SpawnEggs.Size()},
		{Name: t.TileEntities.name, Kind: "name", Size: t.TileEntities.Size()},
		{Name: t.Entities.name, Kind: "name", Size: t.Entities.Size()},
		{Name: t.BlockEntityLegacy.name, Kind: "name", Size: t.BlockEntityLegacy.Size()},
		{Name: t.BlockEntityModern.name, Kind: "name", Size: t.BlockEntityModern.Size()},
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Entries returns the key/value pairs of the named table in key order.
// Numeric tables use decimal string keys.
func (t *Tables) Entries(name string) ([][2]string, error) {
	var out [][2]string
	switch name {
	case "class_names":
		for k, v := range t.classNames {
			out = append(out, [2]string{k, v})
		}
	case "materials", "potions", "spawn_eggs":
		nt := map[string]*NumericTable{"materials": t.Materials, "potions": t.Potions, "spawn_eggs": t.SpawnEggs}[name]
		for i := range nt.entries {
			if v, ok := nt.Lookup(i); ok {
				out = append(out, [2]string{strconv.Itoa(i), v})
			}
		}
		return out, nil
	default:
		var nt *NameTable
		for _, c := range []*NameTable{t.TileEntities, t.Entities, t.BlockEntityLegacy, t.BlockEntityModern} {
			if c.name == name {
				nt = c
			}
		}
		if nt == nil {
			return nil, errors.NewNotFound("table", name)
		}
		for k, v := range nt.entries {
			out = append(out, [2]string{k, v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out, nil
}

// Namespaced normalises an identifier to namespace:path form, adding the
// default namespace when none is given.
func Namespaced(id string) string {
	if strings.Contains(id, ":") {
		return id
	}
	return DefaultNamespace + ":" + id
}
