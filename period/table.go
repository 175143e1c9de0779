package period

import (
	_ "embed"
	"encoding/json"
	"sort"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/teranos/legisync/errors"
)

//go:embed periods.toml
var embeddedTable string

// Table is a static list of known legislatures, ordered by number
type Table []Period

type tableFile struct {
	Legislatura []struct {
		Numero int    `toml:"numero"`
		Inicio string `toml:"inicio"`
		Fim    string `toml:"fim"`
	} `toml:"legislatura"`
}

// DefaultTable returns the embedded table
func DefaultTable() Table {
	t, err := ParseTable(embeddedTable)
	if err != nil {
		panic(errors.Wrap(err, "embedded period table"))
	}
	return t
}

// ParseTable decodes a TOML period table
func ParseTable(data string) (Table, error) {
	var f tableFile
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, errors.Wrap(err, "decode period table")
	}
	return f.build()
}

// LoadTable reads a TOML period table from path
func LoadTable(path string) (Table, error) {
	var f tableFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, errors.Wrapf(err, "decode period table %s", path)
	}
	return f.build()
}

func (f tableFile) build() (Table, error) {
	t := make(Table, 0, len(f.Legislatura))
	for _, l := range f.Legislatura {
		start, err := time.Parse(dateLayout, l.Inicio)
		if err != nil {
			return nil, errors.NewValidationError("legislature %d: bad inicio %q", l.Numero, l.Inicio)
		}
		end, err := time.Parse(dateLayout, l.Fim)
		if err != nil {
			return nil, errors.NewValidationError("legislature %d: bad fim %q", l.Numero, l.Fim)
		}
		if end.Before(start) {
			return nil, errors.NewValidationError("legislature %d ends before it starts", l.Numero)
		}
		t = append(t, Period{Number: l.Numero, Start: start, End: end})
	}
	sort.Slice(t, func(i, j int) bool { return t[i].Number < t[j].Number })
	return t, nil
}

// ByNumber looks up legislature n
func (t Table) ByNumber(n int) (Period, bool) {
	for _, p := range t {
		if p.Number == n {
			return p, true
		}
	}
	return Period{}, false
}

// ByDate looks up the legislature containing d
func (t Table) ByDate(d time.Time) (Period, bool) {
	for _, p := range t {
		if p.Contains(d) {
			return p, true
		}
	}
	return Period{}, false
}

// remote is the upstream /legislaturas entity
type remote struct {
	ID         int    `json:"id"`
	DataInicio string `json:"dataInicio"`
	DataFim    string `json:"dataFim"`
}

func decodeRemote(raw json.RawMessage) (Period, error) {
	var r remote
	if err := json.Unmarshal(raw, &r); err != nil {
		return Period{}, errors.Wrap(err, "decode legislature")
	}
	start, err := time.Parse(dateLayout, r.DataInicio)
	if err != nil {
		return Period{}, errors.Wrapf(err, "legislature %d dataInicio", r.ID)
	}
	end, err := time.Parse(dateLayout, r.DataFim)
	if err != nil {
		return Period{}, errors.Wrapf(err, "legislature %d dataFim", r.ID)
	}
	return Period{Number: r.ID, Start: start, End: end}, nil
}
