package views

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rotisserie/eris"

	"github.com/rendis/gridrank/internal/engine/discovery"
	"github.com/rendis/gridrank/internal/engine/geo"
	"github.com/rendis/gridrank/internal/model"
	"github.com/rendis/gridrank/internal/tui/styles"
)

type locationMode int

const (
	modeAddress locationMode = iota
	modeCoords
)

// Field indices; fieldMode is a virtual field (not a textinput)
const (
	fieldMode = iota
	fieldName
	fieldQuery
	fieldAddress
	fieldLat
	fieldLng
	fieldGrid
	fieldDiscovery
	fieldCount
)

var discoveryChoices = []string{"auto", "maps", "llm", "file", "none"}

// FormValues are the raw scan form inputs. They are persisted so the next
// form opens prefilled.
type FormValues struct {
	Coords    bool   `json:"coords"`
	Name      string `json:"name"`
	Query     string `json:"query"`
	Address   string `json:"address"`
	Lat       string `json:"lat"`
	Lng       string `json:"lng"`
	Grid      string `json:"grid"`
	Discovery string `json:"discovery"`
}

// Settings turns the form into scan settings. needsGeocode is true when the
// target location must be resolved from Address first.
func (v FormValues) Settings() (settings model.ScanSettings, needsGeocode bool, err error) {
	name := strings.TrimSpace(v.Name)
	if name == "" {
		return settings, false, eris.New("Business name is required")
	}
	query := strings.TrimSpace(v.Query)
	if query == "" {
		return settings, false, eris.New("Search query is required")
	}
	address := strings.TrimSpace(v.Address)

	target := model.Business{Name: name, Address: address}
	if v.Coords {
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(v.Lat), 64)
		lng, errLng := strconv.ParseFloat(strings.TrimSpace(v.Lng), 64)
		if errLat != nil || errLng != nil {
			return settings, false, eris.New("Lat and Lng must be numbers")
		}
		target.Location = model.Coordinate{Lat: lat, Lng: lng}
		if !target.Location.Valid() {
			return settings, false, eris.New("Lat must be within ±90 and Lng within ±180")
		}
	} else {
		if address == "" {
			return settings, false, eris.New("Address is required")
		}
		needsGeocode = true
	}
	target.ID = discovery.DerivedID(name, address)

	grid := strings.TrimSpace(v.Grid)
	if grid == "" {
		grid = geo.DefaultGridSpec.String()
	}

	return model.ScanSettings{Target: target, SearchQuery: query, GridSpecText: grid}, needsGeocode, nil
}

type SearchModel struct {
	inputs  []textinput.Model
	mode    locationMode
	focused int
	err     string
}

// NewSearchModel builds the form, prefilled from last.
func NewSearchModel(last FormValues, defaultGrid, defaultDiscovery string) SearchModel {
	inputs := make([]textinput.Model, fieldCount)

	grid := last.Grid
	if grid == "" {
		grid = defaultGrid
	}
	disc := last.Discovery
	if disc == "" {
		disc = defaultDiscovery
	}

	inputs[fieldMode] = textinput.New() // placeholder, never used
	inputs[fieldName] = newInput("Café Central", last.Name, 40)
	inputs[fieldQuery] = newInput("coffee shop", last.Query, 40)
	inputs[fieldAddress] = newInput("Plaza del Ángel 10, Madrid", last.Address, 50)
	inputs[fieldLat] = newInput("40.4168", last.Lat, 15)
	inputs[fieldLng] = newInput("-3.7038", last.Lng, 15)
	inputs[fieldGrid] = newInput("7 x 7 (1 km)", grid, 20)
	inputs[fieldDiscovery] = newInput(strings.Join(discoveryChoices, " | "), disc, 10)

	mode := modeAddress
	if last.Coords {
		mode = modeCoords
	}

	m := SearchModel{inputs: inputs, mode: mode, focused: fieldName}
	m.inputs[fieldName].Focus()
	return m
}

func newInput(placeholder, value string, width int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 100
	if width > 0 {
		ti.Width = width
	}
	if value != "" {
		ti.SetValue(value)
	}
	return ti
}

// Values returns the current form contents.
func (m SearchModel) Values() FormValues {
	val := func(i int) string { return strings.TrimSpace(m.inputs[i].Value()) }
	return FormValues{
		Coords:    m.mode == modeCoords,
		Name:      val(fieldName),
		Query:     val(fieldQuery),
		Address:   val(fieldAddress),
		Lat:       val(fieldLat),
		Lng:       val(fieldLng),
		Grid:      val(fieldGrid),
		Discovery: strings.ToLower(val(fieldDiscovery)),
	}
}

func (m SearchModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, func() tea.Msg { return NavigateToHome{} }
		case "up", "shift+tab":
			m.err = ""
			cmd := m.focusPrev()
			return m, cmd
		case "down", "tab":
			m.err = ""
			cmd := m.focusNext()
			return m, cmd
		case "enter":
			cmd := m.submit()
			return m, cmd
		case "left":
			if m.focused == fieldMode {
				m.mode = modeAddress
				return m, nil
			}
		case "right":
			if m.focused == fieldMode {
				m.mode = modeCoords
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	if m.focused != fieldMode && m.focused >= 0 && m.focused < fieldCount {
		m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	}
	return m, cmd
}

func (m *SearchModel) focusNext() tea.Cmd {
	if m.focused != fieldMode {
		m.inputs[m.focused].Blur()
	}
	m.focused = m.skipField(m.focused+1, 1)
	if m.focused >= fieldCount {
		m.focused = fieldMode
	}
	if m.focused == fieldMode {
		return nil
	}
	m.inputs[m.focused].Focus()
	return textinput.Blink
}

func (m *SearchModel) focusPrev() tea.Cmd {
	if m.focused != fieldMode {
		m.inputs[m.focused].Blur()
	}
	m.focused = m.skipField(m.focused-1, -1)
	if m.focused < 0 {
		m.focused = fieldDiscovery
	}
	if m.focused == fieldMode {
		return nil
	}
	m.inputs[m.focused].Focus()
	return textinput.Blink
}

// skipField steps over the inputs hidden by the current location mode.
func (m *SearchModel) skipField(idx, dir int) int {
	for idx > fieldMode && idx < fieldCount {
		if m.mode == modeAddress && (idx == fieldLat || idx == fieldLng) {
			idx += dir
			continue
		}
		break
	}
	return idx
}

func (m *SearchModel) submit() tea.Cmd {
	values := m.Values()
	if values.Discovery == "" {
		values.Discovery = "auto"
	}
	valid := false
	for _, c := range discoveryChoices {
		if values.Discovery == c {
			valid = true
		}
	}
	if !valid {
		m.err = "Discovery must be one of " + strings.Join(discoveryChoices, ", ")
		return nil
	}

	settings, needsGeocode, err := values.Settings()
	if err != nil {
		m.err = err.Error()
		return nil
	}

	return func() tea.Msg {
		return StartScanMsg{
			Values:       values,
			Settings:     settings,
			NeedsGeocode: needsGeocode,
		}
	}
}

func (m SearchModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("New Scan") + "\n\n")

	b.WriteString(m.renderMode())
	b.WriteString("\n")

	b.WriteString(m.renderField("Business:", fieldName))
	b.WriteString(m.renderField("Query:", fieldQuery))
	if m.mode == modeAddress {
		b.WriteString(m.renderField("Address:", fieldAddress))
	} else {
		b.WriteString(m.renderField("Latitude:", fieldLat))
		b.WriteString(m.renderField("Longitude:", fieldLng))
		b.WriteString(m.renderField("Address:", fieldAddress))
	}

	b.WriteString("\n")
	b.WriteString(m.renderField("Grid:", fieldGrid))
	if m.focused == fieldGrid {
		hint := "  columns x rows (span km)"
		if _, ok := geo.ParseGridSpec(m.inputs[fieldGrid].Value()); !ok {
			hint = fmt.Sprintf("  not recognized, %s will be used", geo.DefaultGridSpec)
		}
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).Render(hint) + "\n")
	}
	b.WriteString(m.renderField("Discovery:", fieldDiscovery))

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorText.Render("  " + m.err))
	}

	b.WriteString("\n\n")
	b.WriteString(styles.StatusBar.Render("enter start • tab next • esc back"))

	return styles.Border.Render(b.String())
}

func (m SearchModel) renderMode() string {
	label := styles.Label.Render("Location:")

	active := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
	inactive := lipgloss.NewStyle().Foreground(styles.Muted)

	var addrStr, coordsStr string
	if m.mode == modeAddress {
		addrStr = active.Render("< Address >")
		coordsStr = inactive.Render("Coordinates")
	} else {
		addrStr = inactive.Render("Address")
		coordsStr = active.Render("< Coordinates >")
	}

	line := fmt.Sprintf("%s  %s   %s", label, addrStr, coordsStr)
	if m.focused == fieldMode {
		line += lipgloss.NewStyle().Foreground(styles.Secondary).Render(" ←→")
	}
	return line + "\n"
}

func (m SearchModel) renderField(label string, idx int) string {
	l := styles.Label.Render(label)
	v := m.inputs[idx].View()
	return fmt.Sprintf("%s %s\n", l, v)
}

// Messages
type NavigateToHome struct{}

type StartScanMsg struct {
	Values       FormValues
	Settings     model.ScanSettings
	NeedsGeocode bool
}
