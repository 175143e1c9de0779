package jobs

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/teranos/legisync/batch"
	"github.com/teranos/legisync/cli"
	"github.com/teranos/legisync/etl"
)

const orgaosCollection = "orgaos"

type orgaoResumo struct {
	ID             int    `json:"id"`
	Sigla          string `json:"sigla"`
	Nome           string `json:"nome"`
	Apelido        string `json:"apelido"`
	CodTipoOrgao   int    `json:"codTipoOrgao"`
	TipoOrgao      string `json:"tipoOrgao"`
	NomePublicacao string `json:"nomePublicacao"`
	NomeResumido   string `json:"nomeResumido"`
}

type membroOrgao struct {
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

type orgaoItem struct {
	Orgao   orgaoResumo
	Membros []membroOrgao // nil when members were not requested
}

// Orgao is the stored committee/body document
type Orgao struct {
	ID          int
	Legislatura int
	Sigla       string
	Nome        string
	Apelido     string
	Tipo        string
	CodTipo     int
	Membros     []membroOrgao
	ComMembros  bool
}

// Key implements etl.Keyed
func (o Orgao) Key() etl.Key {
	return etl.Key{Code: strconv.Itoa(o.ID), Period: o.Legislatura}
}

func (o Orgao) document() map[string]any {
	doc := map[string]any{
		"id":            o.ID,
		"idLegislatura": o.Legislatura,
		"sigla":         o.Sigla,
		"nome":          o.Nome,
		"apelido":       o.Apelido,
		"tipoOrgao":     o.Tipo,
		"codTipoOrgao":  o.CodTipo,
	}
	if o.ComMembros {
		membros := make([]any, len(o.Membros))
		for i, m := range o.Membros {
			membros[i] = map[string]any{
				"id":           m.ID,
				"nome":         m.Nome,
				"siglaPartido": m.SiglaPartido,
				"siglaUf":      m.SiglaUF,
				"titulo":       m.Titulo,
				"codTitulo":    m.CodTitulo,
				"dataInicio":   optionalDate(m.DataInicio),
				"dataFim":      optionalDate(m.DataFim),
			}
		}
		doc["membros"] = membros
		doc["totalMembros"] = len(membros)
	}
	return doc
}

// OrgaosJob syncs the chamber's committees and other bodies
type OrgaosJob struct{}

func (OrgaosJob) Name() string { return orgaosCollection }

func (OrgaosJob) Validate(jc *etl.JobContext) etl.ValidationResult {
	var v etl.ValidationResult
	if id := jc.Options.EntityID; id != "" {
		if _, err := strconv.Atoi(id); err != nil {
			v.Errorf("--id expects a numeric body id, got %q", id)
		}
	}
	if tipo, ok := jc.Options.Flag("tipo"); ok {
		if _, err := strconv.Atoi(tipo); err != nil {
			v.Errorf("--tipo expects a numeric body type code, got %q", tipo)
		}
	}
	return v
}

func (OrgaosJob) Extract(ctx context.Context, jc *etl.JobContext) (etl.Extracted[orgaoItem], error) {
	out := etl.Extracted[orgaoItem]{Timestamp: jc.Now()}

	var list []orgaoResumo
	if id := jc.Options.EntityID; id != "" {
		o, err := fetchOne[orgaoResumo](ctx, jc, "/orgaos/{id}", map[string]string{"id": id})
		if err != nil {
			return out, err
		}
		list = []orgaoResumo{o}
	} else {
		query := url.Values{}
		r := periodRange(jc)
		query.Set("dataInicio", r.Start.Format(dateLayout))
		query.Set("dataFim", r.End.Format(dateLayout))
		if tipo, ok := jc.Options.Flag("tipo"); ok {
			query.Set("codTipoOrgao", tipo)
		}
		raws, err := fetchAll(ctx, jc, "/orgaos", query)
		if err != nil {
			return out, err
		}
		list = decodeAll[orgaoResumo](jc, "orgaos", raws)
	}
	out.Upstream = len(list)

	if !jc.Options.BoolFlag("membros") {
		for _, o := range list {
			out.Items = append(out.Items, orgaoItem{Orgao: o})
		}
		return out, nil
	}

	r := periodRange(jc)
	var complete bool
	out.Items, complete = etl.FanOutLimited(ctx, jc, "orgaos/membros", list, nil, func(ctx context.Context, o orgaoResumo) (orgaoItem, error) {
		query := url.Values{}
		query.Set("dataInicio", r.Start.Format(dateLayout))
		query.Set("dataFim", r.End.Format(dateLayout))
		raws, err := fetchAll(ctx, jc, "/orgaos/"+strconv.Itoa(o.ID)+"/membros", query)
		if err != nil {
			return orgaoItem{}, err
		}
		membros := decodeAll[membroOrgao](jc, "orgaos/membros", raws)
		if membros == nil {
			membros = []membroOrgao{}
		}
		return orgaoItem{Orgao: o, Membros: membros}, nil
	})
	out.Truncated = !complete
	return out, nil
}

func (OrgaosJob) Transform(_ context.Context, jc *etl.JobContext, item orgaoItem) (Orgao, error) {
	o := item.Orgao
	if o.ID <= 0 {
		return Orgao{}, mapping("body without id")
	}
	sigla := strings.TrimSpace(o.Sigla)
	nome := strings.TrimSpace(o.Nome)
	if nome == "" {
		nome = strings.TrimSpace(o.NomePublicacao)
	}
	if sigla == "" && nome == "" {
		return Orgao{}, mapping("body %d has neither sigla nor name", o.ID)
	}
	return Orgao{
		ID:          o.ID,
		Legislatura: jc.Period.Number,
		Sigla:       sigla,
		Nome:        nome,
		Apelido:     o.Apelido,
		Tipo:        o.TipoOrgao,
		CodTipo:     o.CodTipoOrgao,
		Membros:     item.Membros,
		ComMembros:  item.Membros != nil,
	}, nil
}

func (OrgaosJob) Load(jc *etl.JobContext, o Orgao) ([]batch.Operation, error) {
	path := periodPath(jc, orgaosCollection, strconv.Itoa(o.ID))
	doc := o.document()

	// without members, merge so a previous --membros run keeps its member list
	var opts []batch.SetOption
	if !o.ComMembros {
		opts = append(opts, batch.Merge())
	}
	op, err := batch.SetOp(path, doc, opts...)
	if err != nil {
		return nil, err
	}
	return []batch.Operation{op}, nil
}

func (OrgaosJob) Index(jc *etl.JobContext, loaded []Orgao) ([]batch.Operation, error) {
	entries := make([]map[string]any, len(loaded))
	for i, o := range loaded {
		entries[i] = map[string]any{
			"id":        o.ID,
			"sigla":     o.Sigla,
			"nome":      o.Nome,
			"tipoOrgao": o.Tipo,
		}
	}
	return indexOps(jc, orgaosCollection, entries)
}

var orgaosFlags = []cli.FlagDoc{
	{Name: "--membros", Help: "also fetch each body's members for the legislature"},
	{Name: "--tipo", Arg: "COD", Help: "only bodies of this type code (codTipoOrgao)"},
}
