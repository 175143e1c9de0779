package jobs

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/teranos/legisync/batch"
	"github.com/teranos/legisync/etl"
)

const liderancasCollection = "liderancas"

type partidoResumo struct {
	ID    int    `json:"id"`
	Sigla string `json:"sigla"`
	Nome  string `json:"nome"`
}

type lider struct {
	ID            int    `json:"id"`
	Nome          string `json:"nome"`
	SiglaPartido  string `json:"siglaPartido"`
	SiglaUF       string `json:"siglaUf"`
	IDLegislatura int    `json:"idLegislatura"`
	Titulo        string `json:"titulo"`
	CodTitulo     int    `json:"codTitulo"`
	DataInicio    string `json:"dataInicio"`
	DataFim       string `json:"dataFim"`
}

type partidoItem struct {
	Partido partidoResumo
	Lideres []lider
}

// Lideranca is one party's leadership over the legislature, stored under
// the party acronym
type Lideranca struct {
	PartidoID   int
	Sigla       string
	Nome        string
	Legislatura int
	Lideres     []lider
}

// Key implements etl.Keyed
func (l Lideranca) Key() etl.Key {
	return etl.Key{Code: l.docID(), Period: l.Legislatura}
}

// docID makes the acronym usable as a single path segment
func (l Lideranca) docID() string {
	return strings.ReplaceAll(strings.TrimSpace(l.Sigla), "/", "-")
}

// Atual returns the open-ended "Líder" term, else any open-ended term
func (l Lideranca) Atual() (lider, bool) {
	for _, ld := range l.Lideres {
		if ld.DataFim == "" && strings.EqualFold(ld.Titulo, "Líder") {
			return ld, true
		}
	}
	for _, ld := range l.Lideres {
		if ld.DataFim == "" {
			return ld, true
		}
	}
	return lider{}, false
}

func (l Lideranca) document() map[string]any {
	lideres := make([]any, len(l.Lideres))
	for i, ld := range l.Lideres {
		lideres[i] = map[string]any{
			"id":         ld.ID,
			"nome":       ld.Nome,
			"siglaUf":    ld.SiglaUF,
			"titulo":     ld.Titulo,
			"codTitulo":  ld.CodTitulo,
			"dataInicio": optionalDate(ld.DataInicio),
			"dataFim":    optionalDate(ld.DataFim),
		}
	}
	doc := map[string]any{
		"idPartido":     l.PartidoID,
		"sigla":         l.Sigla,
		"nome":          l.Nome,
		"idLegislatura": l.Legislatura,
		"lideres":       lideres,
		"liderAtual":    nil,
	}
	if atual, ok := l.Atual(); ok {
		doc["liderAtual"] = map[string]any{"id": atual.ID, "nome": atual.Nome, "titulo": atual.Titulo}
	}
	return doc
}

// LiderancasJob syncs party leaderships
type LiderancasJob struct{}

func (LiderancasJob) Name() string { return liderancasCollection }

func (LiderancasJob) Validate(jc *etl.JobContext) etl.ValidationResult {
	var v etl.ValidationResult
	if id := jc.Options.EntityID; id != "" {
		if _, err := strconv.Atoi(id); err != nil {
			v.Errorf("--id expects a numeric party id, got %q", id)
		}
	}
	return v
}

func (LiderancasJob) Extract(ctx context.Context, jc *etl.JobContext) (etl.Extracted[partidoItem], error) {
	out := etl.Extracted[partidoItem]{Timestamp: jc.Now()}

	var partidos []partidoResumo
	if id := jc.Options.EntityID; id != "" {
		p, err := fetchOne[partidoResumo](ctx, jc, "/partidos/{id}", map[string]string{"id": id})
		if err != nil {
			return out, err
		}
		partidos = []partidoResumo{p}
	} else {
		query := url.Values{}
		query.Set("idLegislatura", strconv.Itoa(jc.Period.Number))
		query.Set("ordem", "ASC")
		query.Set("ordenarPor", "sigla")
		raws, err := fetchAll(ctx, jc, "/partidos", query)
		if err != nil {
			return out, err
		}
		partidos = decodeAll[partidoResumo](jc, "partidos", raws)
	}
	out.Upstream = len(partidos)

	r := periodRange(jc)
	var complete bool
	out.Items, complete = etl.FanOutLimited(ctx, jc, "partidos/lideres", partidos, nil, func(ctx context.Context, p partidoResumo) (partidoItem, error) {
		query := url.Values{}
		query.Set("dataInicio", r.Start.Format(dateLayout))
		query.Set("dataFim", r.End.Format(dateLayout))
		raws, err := fetchAll(ctx, jc, "/partidos/"+strconv.Itoa(p.ID)+"/lideres", query)
		if err != nil {
			return partidoItem{}, err
		}
		return partidoItem{Partido: p, Lideres: decodeAll[lider](jc, "lideres", raws)}, nil
	})
	out.Truncated = !complete
	return out, nil
}

func (LiderancasJob) Transform(_ context.Context, jc *etl.JobContext, item partidoItem) (Lideranca, error) {
	p := item.Partido
	if strings.TrimSpace(p.Sigla) == "" {
		return Lideranca{}, mapping("party %d has no acronym", p.ID)
	}
	lideres := append([]lider(nil), item.Lideres...)
	sort.SliceStable(lideres, func(i, j int) bool { return lideres[i].DataInicio > lideres[j].DataInicio })
	if lideres == nil {
		lideres = []lider{}
	}
	return Lideranca{
		PartidoID:   p.ID,
		Sigla:       strings.TrimSpace(p.Sigla),
		Nome:        p.Nome,
		Legislatura: jc.Period.Number,
		Lideres:     lideres,
	}, nil
}

func (LiderancasJob) Load(jc *etl.JobContext, l Lideranca) ([]batch.Operation, error) {
	op, err := set(periodPath(jc, liderancasCollection, l.docID()), l.document())
	if err != nil {
		return nil, err
	}
	return []batch.Operation{op}, nil
}

func (LiderancasJob) Index(jc *etl.JobContext, loaded []Lideranca) ([]batch.Operation, error) {
	entries := make([]map[string]any, len(loaded))
	for i, l := range loaded {
		entry := map[string]any{"sigla": l.Sigla, "idPartido": l.PartidoID, "liderAtual": nil}
		if atual, ok := l.Atual(); ok {
			entry["liderAtual"] = atual.Nome
		}
		entries[i] = entry
	}
	return indexOps(jc, liderancasCollection, entries)
}
