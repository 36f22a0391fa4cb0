package productlink

import (
	"strings"
	"sync"
)

const DefaultBaseURL = "https://app.technests.ai"

type Mapping struct {
	ProductName  string
	DownloadPath string
}

// DefaultMappings is checked in order; partial matching picks the first hit.
var DefaultMappings = []Mapping{
	{"Prop Trade Planner - Dr.Markets", "/download/Prop Trade Planner - Dr.Markets"},
	{"TradeRx", "/download/TradeRx"},
	{"JournalX", "/download/JournalX"},
	{"TradeCam", "/download/TradeCam"},
	{"Trade Video Recorder", "/download/Trade Video Recorder"},
	{"Regular Updates", "/download/Regular Updates"},
	{"White-Glove Prop Trading Environment Setup", "/download/White-Glove Prop Trading Environment Setup"},
	{"Custom Strategy Development (Advisory)", "/download/Custom Strategy Development (Advisory)"},
	{"One-on-one Prop Firm Journey Coaching", "/download/One-on-one Prop Firm Journey Coaching"},

	{"Prop Trade Planner Dr.Markets Trial", "/download/Prop Trade Planner Dr.Markets Trial"},
	{"TradeRx - Trial", "/download/TradeRx - Trial"},
	{"JournalX Trial", "/download/JournalX Trial"},
	{"TradeCam Trial", "/download/TradeCam Trial"},
	{"Trade Video Recorder Trial", "/download/Trade Video Recorder Trial"},

	{"Core Bundle Trial — Planner + TradeRx + JournalX", "/download/Core Bundle Trial — Planner + TradeRx + JournalX"},
	{"Core Bundle — Planner + TradeRx + JournalX", "/download/Core Bundle — Planner + TradeRx + JournalX"},

	{"PropTraderPro", "/download/proptraderpro"},
}

// Mapper resolves a plan nickname to the product download URL.
type Mapper struct {
	baseURL     string
	defaultLink string

	mu       sync.RWMutex
	mappings []Mapping
}

// NewMapper copies mappings. An empty defaultLink falls back to the
// PropTraderPro download under baseURL.
func NewMapper(baseURL, defaultLink string, mappings []Mapping) *Mapper {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if defaultLink == "" {
		defaultLink = baseURL + "/download/proptraderpro"
	}
	return &Mapper{
		baseURL:     baseURL,
		defaultLink: defaultLink,
		mappings:    append([]Mapping(nil), mappings...),
	}
}

// Resolve tries an exact match, then case-insensitive, then a substring match
// in either direction, then the default link.
func (m *Mapper) Resolve(planNickname string) string {
	name := strings.TrimSpace(planNickname)
	if name == "" || name == "N/A" {
		return m.defaultLink
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, mp := range m.mappings {
		if mp.ProductName == name {
			return m.baseURL + mp.DownloadPath
		}
	}

	lower := strings.ToLower(name)
	for _, mp := range m.mappings {
		if strings.ToLower(mp.ProductName) == lower {
			return m.baseURL + mp.DownloadPath
		}
	}

	for _, mp := range m.mappings {
		key := strings.ToLower(mp.ProductName)
		if strings.Contains(key, lower) || strings.Contains(lower, key) {
			return m.baseURL + mp.DownloadPath
		}
	}

	return m.defaultLink
}

// Add inserts or replaces the mapping for productName.
func (m *Mapper) Add(productName, downloadPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.mappings {
		if m.mappings[i].ProductName == productName {
			m.mappings[i].DownloadPath = downloadPath
			return
		}
	}
	m.mappings = append(m.mappings, Mapping{ProductName: productName, DownloadPath: downloadPath})
}

func (m *Mapper) Mappings() []Mapping {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Mapping(nil), m.mappings...)
}
