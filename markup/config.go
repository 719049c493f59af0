package markup

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultFuzzyThreshold is the score at which a fuzzy icon match is applied
// automatically instead of only being suggested. Deliberately a config value:
// whether to trust fuzzy matches is a per-deployment decision.
const DefaultFuzzyThreshold = 0.5

// MappingConfig is the immutable configuration handed to a Reconciler: icon
// tables, palettes, and the fuzzy acceptance threshold. It is loaded once and
// never mutated mid-run; hosts running several migrations concurrently give
// each its own instance.
type MappingConfig struct {
	SymbolMap      map[string]string   `yaml:"symbol_map"`
	KeywordRules   []KeywordRule       `yaml:"keyword_rules"`
	GenericSymbols []string            `yaml:"generic_symbols"`
	Synonyms       map[string][]string `yaml:"synonyms,omitempty"`
	Icons          []string            `yaml:"icons"`
	DefaultIcon    string              `yaml:"default_icon"`
	FuzzyThreshold float64             `yaml:"fuzzy_threshold"`

	WaypointPalette Palette `yaml:"waypoint_palette"`
	TrackPalette    Palette `yaml:"track_palette"`

	// Precision is the coordinate rounding (decimal places) used for
	// geometry signatures and waypoint dedup keys.
	Precision int `yaml:"precision,omitempty"`
}

// LoadMappingConfig loads a mapping configuration from a YAML file.
func LoadMappingConfig(path string) (*MappingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg MappingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveMappingConfig writes the configuration to a YAML file, typically to
// seed a user-editable mapping file from the defaults.
func SaveMappingConfig(path string, cfg *MappingConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks the fields the pipeline cannot run without. Palette
// problems surface as *PaletteConfigurationError so callers can fail the run
// before any feature-level work starts.
func (c *MappingConfig) Validate() error {
	if c.DefaultIcon == "" {
		return fmt.Errorf("default_icon is required")
	}
	if c.FuzzyThreshold < 0 || c.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy_threshold must be in [0,1], got %g", c.FuzzyThreshold)
	}
	if err := c.WaypointPalette.Validate(); err != nil {
		return err
	}
	if err := c.TrackPalette.Validate(); err != nil {
		return err
	}
	return nil
}

// TargetIcons returns the icon names the fuzzy matcher scores against: the
// configured canonical list when present, otherwise everything reachable
// from the symbol and keyword tables.
func (c *MappingConfig) TargetIcons() []string {
	if len(c.Icons) > 0 {
		return c.Icons
	}
	seen := make(map[string]struct{})
	for _, icon := range c.SymbolMap {
		seen[icon] = struct{}{}
	}
	for _, rule := range c.KeywordRules {
		seen[rule.Icon] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for icon := range seen {
		out = append(out, icon)
	}
	sort.Strings(out)
	return out
}

// DefaultMappingConfig returns the stock tables for migrating into the
// supported target platform. Users extend these through a YAML override file.
func DefaultMappingConfig() *MappingConfig {
	return &MappingConfig{
		SymbolMap:       defaultSymbolMap(),
		KeywordRules:    defaultKeywordRules(),
		GenericSymbols:  []string{"point", "marker", "pin", "dot", "circle"},
		Icons:           canonicalIcons(),
		DefaultIcon:     "Location",
		FuzzyThreshold:  DefaultFuzzyThreshold,
		WaypointPalette: DefaultWaypointPalette(),
		TrackPalette:    DefaultTrackPalette(),
		Precision:       DefaultPrecision,
	}
}

// defaultKeywordRules is ordered: earlier rules win when a feature's text
// matches several.
func defaultKeywordRules() []KeywordRule {
	return []KeywordRule{
		{Icon: "Camp", Keywords: []string{"tent", "camp", "sleep", "overnight", "camping"}},
		{Icon: "Water Source", Keywords: []string{"water", "spring", "refill", "creek", "stream"}},
		{Icon: "Parking", Keywords: []string{"car", "parking", "lot", "vehicle"}},
		{Icon: "Trailhead", Keywords: []string{"trailhead", "trail head", "th"}},
		{Icon: "XC Skiing", Keywords: []string{"ski", "skin", "tour", "uptrack", "skiing", "xc"}},
		{Icon: "Summit", Keywords: []string{"summit", "peak", "top", "mt"}},
		{Icon: "Hazard", Keywords: []string{"danger", "avy", "avalanche", "slide", "caution", "warning", "deadfall", "dead fall"}},
		{Icon: "Photo", Keywords: []string{"camera", "photo"}},
		{Icon: "View", Keywords: []string{"view", "viewpoint", "vista", "overlook", "scenic"}},
		{Icon: "Cabin", Keywords: []string{"cabin", "hut", "yurt"}},
	}
}

func defaultSymbolMap() map[string]string {
	return map[string]string{
		// Hazards
		"danger": "Hazard", "skull": "Hazard", "warning": "Hazard",
		"caution": "Hazard", "hazard": "Hazard", "alert": "Hazard",
		// Camping
		"campsite": "Camp", "tent": "Camp", "camp": "Camp", "camping": "Camp",
		"bivy": "Camp Backcountry", "campground": "Campground", "camp-area": "Camp Area",
		// Water
		"water": "Water Source", "droplet": "Water Source", "spring": "Water Source",
		"creek": "Water Source", "lake": "Water Source", "river": "Water Source",
		"waterfall": "Waterfall", "hot-spring": "Hot Spring", "geyser": "Geyser",
		"rapids": "Rapids", "wetland": "Wetland", "potable": "Potable Water",
		"water-crossing": "Water Crossing",
		// Vehicles
		"car": "Parking", "parking": "Parking", "vehicle": "Parking", "lot": "Parking",
		"4x4": "4x4", "atv": "ATV", "bike": "Bike", "bicycle": "Bike",
		"dirt-bike": "Dirt Bike", "motorcycle": "Dirt Bike", "overland": "Overland",
		"rv": "RV", "suv": "SUV", "truck": "Truck",
		// Winter
		"skiing": "XC Skiing", "ski": "Ski", "xc-skiing": "XC Skiing",
		"backcountry": "Ski Touring", "skin": "Skin Track", "tour": "Ski Touring",
		"ski-touring": "Ski Touring", "ski-area": "Ski Areas",
		"snowboard": "Snowboarder", "snowmobile": "Snowmobile",
		"snowpark": "Snowpark", "snow-pit": "Snow Pit",
		// Hiking
		"trailhead": "Trailhead", "trail": "Trailhead", "hike": "Hike",
		"hiking": "Hike", "backpack": "Backpacker", "backpacker": "Backpacker",
		"mountaineer": "Mountaineer",
		// Climbing
		"climbing": "Climbing", "climb": "Climbing", "rappel": "Rappel",
		"cave": "Cave", "caving": "Caving",
		// Terrain
		"summit": "Summit", "peak": "Summit", "triangle-u": "Summit",
		"mountain": "Summit", "top": "Summit", "cornice": "Cornice",
		"couloir": "Couloir", "slide-path": "Slide Path", "steep": "Steep Trail",
		"log": "Log Obstacle",
		// Infrastructure
		"barrier": "Barrier", "road-barrier": "Road Barrier", "gate": "Gate",
		"closed-gate": "Closed Gate", "open-gate": "Open Gate",
		"footbridge": "Footbridge", "bridge": "Footbridge", "crossing": "Crossing",
		// Facilities
		"fuel": "Fuel", "gas": "Fuel", "food": "Food Source",
		"restaurant": "Food Source", "food-storage": "Food Storage",
		"picnic": "Picnic Area", "shelter": "Shelter", "house": "House",
		"cabin": "Cabin", "hut": "Cabin", "yurt": "Cabin", "kennels": "Kennels",
		"visitor": "Visitor Center", "gear": "Gear",
		// Water activities
		"canoe": "Canoe", "kayak": "Kayak", "raft": "Raft", "rafting": "Raft",
		"swimming": "Swimming", "swim": "Swimming", "windsurf": "Windsurfing",
		"hand-launch": "Hand Launch", "put-in": "Put In", "take-out": "Take Out",
		"marina": "Marina",
		// Observation
		"camera": "Photo", "photo": "Photo", "binoculars": "View",
		"viewpoint": "View", "vista": "View", "overlook": "View",
		"lookout": "Lookout", "observation": "Observation Towers",
		"tower": "Observation Towers", "webcam": "Webcam", "lighthouse": "Lighthouses",
		// Wildlife
		"eagle": "Eagle", "bird": "Eagle", "fish": "Fish", "fishing": "Fish",
		"mushroom": "Mushroom", "wildflower": "Wildflower",
	}
}

// canonicalIcons is the closed set of icon names the target platform accepts.
func canonicalIcons() []string {
	return []string{
		"4x4", "Access Point", "ATV", "Backpacker", "Barrier", "Beach Combing",
		"Bike", "Camp", "Camp Area", "Camp Backcountry", "Campground", "Canoe",
		"Cave", "Caving", "Climbing", "Closed Gate", "Cornice", "Couloir",
		"Crossing", "Dirt Bike", "Dog Sledding", "Eagle", "Emergency Phone",
		"Feeding Area", "Fish", "Food Source", "Food Storage", "Footbridge",
		"Foraging", "Fuel", "Gate", "Gear", "Geyser", "Hand Launch",
		"Hang Gliding", "Hazard", "Hike", "Horseback", "Hot Spring", "House",
		"Kayak", "Kennels", "Lighthouses", "Location", "Log Obstacle", "Lookout",
		"Marina", "Mountain Biking", "Mountaineer", "Mushroom",
		"Observation Towers", "Open Gate", "Overland", "Parking", "Photo",
		"Picnic Area", "Potable Water", "Put In", "Raft", "Rapids", "Rappel",
		"Road Barrier", "Ruins", "RV", "Sasquatch", "Shelter", "Ski",
		"Ski Areas", "Ski Touring", "Skin Track", "Slide Path", "Snow Pit",
		"Snowboarder", "Snowmobile", "Snowpark", "Steep Trail", "Stock Tank",
		"Summit", "Surfing Area", "SUV", "Swimming", "Take Out", "Trailhead",
		"Truck", "View", "Visitor Center", "Washout", "Water Crossing",
		"Water Source", "Waterfall", "Webcam", "Wetland", "Wildflower",
		"Windsurfing", "XC Skiing",
	}
}
