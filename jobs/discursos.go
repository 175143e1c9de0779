package jobs

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teranos/legisync/batch"
	"github.com/teranos/legisync/cli"
	"github.com/teranos/legisync/etl"
)

const discursosCollection = "discursos"

type discursoRaw struct {
	DataHoraInicio string `json:"dataHoraInicio"`
	DataHoraFim    string `json:"dataHoraFim"`
	TipoDiscurso   string `json:"tipoDiscurso"`
	Sumario        string `json:"sumario"`
	Transcricao    string `json:"transcricao"`
	Keywords       string `json:"keywords"`
	URLTexto       string `json:"urlTexto"`
	URLAudio       string `json:"urlAudio"`
	URLVideo       string `json:"urlVideo"`
	FaseEvento     struct {
		Titulo         string `json:"titulo"`
		DataHoraInicio string `json:"dataHoraInicio"`
		DataHoraFim    string `json:"dataHoraFim"`
	} `json:"faseEvento"`
}

type discursoItem struct {
	DeputadoID int
	Discurso   discursoRaw
}

// Discurso is a stored speech, filed under the deputy who gave it
type Discurso struct {
	ID          string // see discursoID, upstream has no speech id
	DeputadoID  int
	Legislatura int
	Inicio      time.Time
	Fim         any
	Tipo        string
	Sumario     string
	Transcricao string
	Keywords    []string
	Fase        string
	URLTexto    string
	URLAudio    string
	URLVideo    string
}

// Key implements etl.Keyed
func (d Discurso) Key() etl.Key {
	return etl.Key{Code: strconv.Itoa(d.DeputadoID) + "-" + d.ID, Period: d.Legislatura}
}

func (d Discurso) document() map[string]any {
	keywords := make([]any, len(d.Keywords))
	for i, k := range d.Keywords {
		keywords[i] = k
	}
	return map[string]any{
		"id":             d.ID,
		"deputadoId":     d.DeputadoID,
		"idLegislatura":  d.Legislatura,
		"dataHoraInicio": d.Inicio,
		"dataHoraFim":    d.Fim,
		"tipoDiscurso":   d.Tipo,
		"sumario":        d.Sumario,
		"transcricao":    d.Transcricao,
		"keywords":       keywords,
		"faseEvento":     d.Fase,
		"urlTexto":       d.URLTexto,
		"urlAudio":       d.URLAudio,
		"urlVideo":       d.URLVideo,
	}
}

// DiscursosJob syncs plenary speeches per deputy
type DiscursosJob struct{}

func (DiscursosJob) Name() string { return discursosCollection }

func (DiscursosJob) Validate(jc *etl.JobContext) etl.ValidationResult {
	var v etl.ValidationResult
	if id := jc.Options.EntityID; id != "" {
		if _, err := strconv.Atoi(id); err != nil {
			v.Errorf("--id expects a numeric deputy id, got %q", id)
		}
	}
	return v
}

func (DiscursosJob) Extract(ctx context.Context, jc *etl.JobContext) (etl.Extracted[discursoItem], error) {
	out := etl.Extracted[discursoItem]{Timestamp: jc.Now()}

	var ids []int
	if id := jc.Options.EntityID; id != "" {
		n, _ := strconv.Atoi(id)
		ids = []int{n}
	} else {
		query := url.Values{}
		query.Set("idLegislatura", strconv.Itoa(jc.Period.Number))
		raws, err := fetchAll(ctx, jc, "/deputados", query)
		if err != nil {
			return out, err
		}
		for _, d := range decodeAll[deputadoResumo](jc, "deputados", raws) {
			ids = append(ids, d.ID)
		}
	}
	// the item limit counts speeches, so deputies are fetched until enough arrived
	r := periodRange(jc)
	perDeputy, complete := etl.FanOutLimited(ctx, jc, "deputados/discursos", ids, func(items []discursoItem) int { return len(items) }, func(ctx context.Context, id int) ([]discursoItem, error) {
		query := url.Values{}
		query.Set("idLegislatura", strconv.Itoa(jc.Period.Number))
		query.Set("dataInicio", r.Start.Format(dateLayout))
		query.Set("dataFim", r.End.Format(dateLayout))
		query.Set("ordem", "ASC")
		query.Set("ordenarPor", "dataHoraInicio")
		raws, err := fetchAll(ctx, jc, "/deputados/"+strconv.Itoa(id)+"/discursos", query)
		if err != nil {
			return nil, err
		}
		speeches := decodeAll[discursoRaw](jc, "discursos", raws)
		items := make([]discursoItem, len(speeches))
		for i, s := range speeches {
			items[i] = discursoItem{DeputadoID: id, Discurso: s}
		}
		return items, nil
	})

	for _, items := range perDeputy {
		out.Items = append(out.Items, items...)
	}
	out.Truncated = !complete
	return out, nil
}

func (DiscursosJob) Transform(_ context.Context, jc *etl.JobContext, item discursoItem) (Discurso, error) {
	s := item.Discurso
	inicio := parseDate(s.DataHoraInicio)
	if inicio.IsZero() {
		return Discurso{}, mapping("speech by deputy %d has no valid start (%q)", item.DeputadoID, s.DataHoraInicio)
	}

	var keywords []string
	for _, k := range strings.Split(s.Keywords, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}

	transcricao := s.Transcricao
	if jc.Options.BoolFlag("sem-transcricao") {
		transcricao = ""
	}

	return Discurso{
		ID:          discursoID(item.DeputadoID, s),
		DeputadoID:  item.DeputadoID,
		Legislatura: jc.Period.Number,
		Inicio:      inicio,
		Fim:         optionalDate(s.DataHoraFim),
		Tipo:        s.TipoDiscurso,
		Sumario:     strings.TrimSpace(s.Sumario),
		Transcricao: transcricao,
		Keywords:    keywords,
		Fase:        s.FaseEvento.Titulo,
		URLTexto:    s.URLTexto,
		URLAudio:    s.URLAudio,
		URLVideo:    s.URLVideo,
	}, nil
}

// discursoIDText is how much of the summary (or transcript) goes into the id
const discursoIDText = 120

// discursoID identifies a speech by deputy, start, type and the opening of
// its text. Start and type alone collide when a deputy speaks twice in one
// session phase.
func discursoID(deputadoID int, s discursoRaw) string {
	text := strings.TrimSpace(s.Sumario)
	if text == "" {
		text = strings.TrimSpace(s.Transcricao)
	}
	if r := []rune(text); len(r) > discursoIDText {
		text = string(r[:discursoIDText])
	}
	return hash(strconv.Itoa(deputadoID), s.DataHoraInicio, s.TipoDiscurso, text)
}

func (DiscursosJob) Load(jc *etl.JobContext, d Discurso) ([]batch.Operation, error) {
	path := periodPath(jc, deputadosCollection, strconv.Itoa(d.DeputadoID), discursosCollection, d.ID)
	op, err := set(path, d.document())
	if err != nil {
		return nil, err
	}
	return []batch.Operation{op}, nil
}

// Index counts loaded speeches per deputy
func (DiscursosJob) Index(jc *etl.JobContext, loaded []Discurso) ([]batch.Operation, error) {
	counts := make(map[int]int)
	for _, d := range loaded {
		counts[d.DeputadoID]++
	}
	ids := make([]int, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	entries := make([]map[string]any, len(ids))
	for i, id := range ids {
		entries[i] = map[string]any{"deputadoId": id, "discursos": counts[id]}
	}
	ops, err := indexOps(jc, discursosCollection, entries)
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		op.Data["totalDiscursos"] = len(loaded)
	}
	return ops, nil
}

var discursosFlags = []cli.FlagDoc{
	{Name: "--sem-transcricao", Help: "drop the full transcript, keep the summary"},
}
