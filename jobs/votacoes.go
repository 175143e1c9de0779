package jobs

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/legisync/batch"
	"github.com/teranos/legisync/cli"
	"github.com/teranos/legisync/etl"
	"github.com/teranos/legisync/logger"
	"github.com/teranos/legisync/upstream"
)

const votacoesCollection = "votacoes"

type votacaoResumo struct {
	ID               string `json:"id"`
	Data             string `json:"data"`
	DataHoraRegistro string `json:"dataHoraRegistro"`
	SiglaOrgao       string `json:"siglaOrgao"`
	ProposicaoObjeto string `json:"proposicaoObjeto"`
	Descricao        string `json:"descricao"`
	Aprovacao        *int   `json:"aprovacao"`
}

type voto struct {
	TipoVoto         string `json:"tipoVoto"`
	DataRegistroVoto string `json:"dataRegistroVoto"`
	Deputado         struct {
		ID           int    `json:"id"`
		Nome         string `json:"nome"`
		SiglaPartido string `json:"siglaPartido"`
		SiglaUF      string `json:"siglaUf"`
	} `json:"deputado_"`
}

type votacaoItem struct {
	Votacao votacaoResumo
	Votos   []voto // nil when votes were not requested
}

// Votacao is the stored roll-call document
type Votacao struct {
	ID          string
	Legislatura int
	Data        time.Time
	Registro    any
	Orgao       string
	Proposicao  string
	Descricao   string
	Aprovada    any
	Votos       []voto
	ComVotos    bool
}

// Key implements etl.Keyed
func (v Votacao) Key() etl.Key {
	return etl.Key{Code: v.ID, Period: v.Legislatura}
}

// Placar counts votes per vote type
func (v Votacao) Placar() map[string]int {
	placar := make(map[string]int)
	for _, vt := range v.Votos {
		placar[vt.TipoVoto]++
	}
	return placar
}

func (v Votacao) document() map[string]any {
	doc := map[string]any{
		"id":               v.ID,
		"idLegislatura":    v.Legislatura,
		"data":             v.Data,
		"dataHoraRegistro": v.Registro,
		"siglaOrgao":       v.Orgao,
		"proposicaoObjeto": v.Proposicao,
		"descricao":        v.Descricao,
		"aprovacao":        v.Aprovada,
	}
	if v.ComVotos {
		votos := make([]any, len(v.Votos))
		for i, vt := range v.Votos {
			votos[i] = map[string]any{
				"deputadoId":   vt.Deputado.ID,
				"nome":         vt.Deputado.Nome,
				"siglaPartido": vt.Deputado.SiglaPartido,
				"siglaUf":      vt.Deputado.SiglaUF,
				"tipoVoto":     vt.TipoVoto,
				"dataRegistro": optionalDate(vt.DataRegistroVoto),
			}
		}
		placar := make(map[string]any)
		for k, n := range v.Placar() {
			placar[k] = n
		}
		doc["votos"] = votos
		doc["placar"] = placar
		doc["totalVotos"] = len(votos)
	}
	return doc
}

// VotacoesJob syncs roll-call votes held during a date range
type VotacoesJob struct{}

func (VotacoesJob) Name() string { return votacoesCollection }

func (VotacoesJob) Validate(jc *etl.JobContext) etl.ValidationResult {
	var v etl.ValidationResult
	if r := jc.Options.DateRange; r != nil && !r.Start.IsZero() && !r.End.IsZero() && r.Start.Year() != r.End.Year() {
		v.Errorf("--inicio and --fim must fall in the same year, got %d and %d", r.Start.Year(), r.End.Year())
	}
	return v
}

// windows splits r at year boundaries; upstream rejects ranges spanning years
func windows(r etl.DateRange) []etl.DateRange {
	var out []etl.DateRange
	for start := r.Start; !start.After(r.End); {
		end := time.Date(start.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
		if end.After(r.End) {
			end = r.End
		}
		out = append(out, etl.DateRange{Start: start, End: end})
		start = time.Date(start.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return out
}

func (VotacoesJob) Extract(ctx context.Context, jc *etl.JobContext) (etl.Extracted[votacaoItem], error) {
	out := etl.Extracted[votacaoItem]{Timestamp: jc.Now()}

	var list []votacaoResumo
	if id := jc.Options.EntityID; id != "" {
		v, err := fetchOne[votacaoResumo](ctx, jc, "/votacoes/{id}", map[string]string{"id": id})
		if err != nil {
			return out, err
		}
		list = []votacaoResumo{v}
	} else {
		var failed error
		for _, w := range windows(periodRange(jc)) {
			query := url.Values{}
			query.Set("dataInicio", w.Start.Format(dateLayout))
			query.Set("dataFim", w.End.Format(dateLayout))
			query.Set("ordem", "ASC")
			query.Set("ordenarPor", "dataHoraRegistro")
			raws, err := fetchAll(ctx, jc, "/votacoes", query)
			if err != nil {
				failed = err
				jc.Stats.RecordError()
				jc.Logger.Warnw("Window skipped, listing failed",
					"inicio", w.Start.Format(dateLayout),
					"fim", w.End.Format(dateLayout),
					logger.FieldError, err.Error(),
				)
				continue
			}
			list = append(list, decodeAll[votacaoResumo](jc, "votacoes", raws)...)
		}
		if len(list) == 0 && failed != nil {
			return out, failed
		}
	}
	out.Upstream = len(list)

	if jc.Options.BoolFlag("sem-votos") {
		for _, v := range list {
			out.Items = append(out.Items, votacaoItem{Votacao: v})
		}
		return out, nil
	}

	var complete bool
	out.Items, complete = etl.FanOutLimited(ctx, jc, "votacoes/votos", list, nil, func(ctx context.Context, v votacaoResumo) (votacaoItem, error) {
		payload, err := jc.API.Get(ctx, "/votacoes/{id}/votos", nil, upstream.WithPathParams(map[string]string{"id": v.ID}))
		if err != nil {
			return votacaoItem{}, err
		}
		votos := make([]voto, 0, payload.Len())
		for _, raw := range payload.Items() {
			var vt voto
			if err := json.Unmarshal(raw, &vt); err != nil {
				return votacaoItem{}, err
			}
			votos = append(votos, vt)
		}
		return votacaoItem{Votacao: v, Votos: votos}, nil
	})
	out.Truncated = !complete
	return out, nil
}

func (VotacoesJob) Transform(_ context.Context, jc *etl.JobContext, item votacaoItem) (Votacao, error) {
	v := item.Votacao
	id := strings.TrimSpace(v.ID)
	if id == "" {
		return Votacao{}, mapping("roll call without id")
	}
	data := parseDate(v.Data)
	if data.IsZero() {
		return Votacao{}, mapping("roll call %s has no valid date (%q)", id, v.Data)
	}

	var aprovada any
	if v.Aprovacao != nil {
		aprovada = *v.Aprovacao == 1
	}
	return Votacao{
		ID:          id,
		Legislatura: jc.Period.Number,
		Data:        data,
		Registro:    optionalDate(v.DataHoraRegistro),
		Orgao:       v.SiglaOrgao,
		Proposicao:  v.ProposicaoObjeto,
		Descricao:   v.Descricao,
		Aprovada:    aprovada,
		Votos:       item.Votos,
		ComVotos:    item.Votos != nil,
	}, nil
}

func (VotacoesJob) Load(jc *etl.JobContext, v Votacao) ([]batch.Operation, error) {
	var opts []batch.SetOption
	if !v.ComVotos {
		opts = append(opts, batch.Merge())
	}
	op, err := batch.SetOp(periodPath(jc, votacoesCollection, v.ID), v.document(), opts...)
	if err != nil {
		return nil, err
	}
	return []batch.Operation{op}, nil
}

func (VotacoesJob) Index(jc *etl.JobContext, loaded []Votacao) ([]batch.Operation, error) {
	entries := make([]map[string]any, len(loaded))
	for i, v := range loaded {
		entries[i] = map[string]any{
			"id":         v.ID,
			"data":       v.Data,
			"siglaOrgao": v.Orgao,
			"aprovacao":  v.Aprovada,
		}
	}
	return indexOps(jc, votacoesCollection, entries)
}

var votacoesFlags = []cli.FlagDoc{
	{Name: "--sem-votos", Help: "skip the per-deputy votes of each roll call"},
}
