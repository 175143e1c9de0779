package jobs

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/teranos/legisync/batch"
	"github.com/teranos/legisync/cli"
	"github.com/teranos/legisync/etl"
)

const deputadosCollection = "deputados"

// deputadoResumo is an entry of /deputados
type deputadoResumo struct {
	ID            int    `json:"id"`
	Nome          string `json:"nome"`
	SiglaPartido  string `json:"siglaPartido"`
	SiglaUF       string `json:"siglaUf"`
	IDLegislatura int    `json:"idLegislatura"`
	URLFoto       string `json:"urlFoto"`
	Email         string `json:"email"`
}

// deputadoDetalhe is /deputados/{id}
type deputadoDetalhe struct {
	ID                  int      `json:"id"`
	NomeCivil           string   `json:"nomeCivil"`
	CPF                 string   `json:"cpf"`
	Sexo                string   `json:"sexo"`
	URLWebsite          string   `json:"urlWebsite"`
	RedeSocial          []string `json:"redeSocial"`
	DataNascimento      string   `json:"dataNascimento"`
	DataFalecimento     string   `json:"dataFalecimento"`
	UFNascimento        string   `json:"ufNascimento"`
	MunicipioNascimento string   `json:"municipioNascimento"`
	Escolaridade        string   `json:"escolaridade"`
	UltimoStatus        struct {
		Nome              string `json:"nome"`
		NomeEleitoral     string `json:"nomeEleitoral"`
		SiglaPartido      string `json:"siglaPartido"`
		SiglaUF           string `json:"siglaUf"`
		IDLegislatura     int    `json:"idLegislatura"`
		URLFoto           string `json:"urlFoto"`
		Email             string `json:"email"`
		Data              string `json:"data"`
		Situacao          string `json:"situacao"`
		CondicaoEleitoral string `json:"condicaoEleitoral"`
		Gabinete          struct {
			Nome     string `json:"nome"`
			Predio   string `json:"predio"`
			Sala     string `json:"sala"`
			Andar    string `json:"andar"`
			Telefone string `json:"telefone"`
			Email    string `json:"email"`
		} `json:"gabinete"`
	} `json:"ultimoStatus"`
}

// Deputado is the stored member-of-parliament document
type Deputado struct {
	ID            int
	Legislatura   int
	Nome          string
	NomeCivil     string
	NomeEleitoral string
	Partido       string
	UF            string
	Sexo          string
	Email         string
	URLFoto       string
	Situacao      string
	Condicao      string
	Nascimento    string
	Municipio     string
	UFNascimento  string
	Escolaridade  string
	Website       string
	RedesSociais  []string
	Gabinete      map[string]any
}

// Key implements etl.Keyed
func (d Deputado) Key() etl.Key {
	return etl.Key{Code: strconv.Itoa(d.ID), Period: d.Legislatura}
}

func (d Deputado) document() map[string]any {
	redes := make([]any, len(d.RedesSociais))
	for i, r := range d.RedesSociais {
		redes[i] = r
	}
	return map[string]any{
		"id":                  d.ID,
		"idLegislatura":       d.Legislatura,
		"nome":                d.Nome,
		"nomeCivil":           d.NomeCivil,
		"nomeEleitoral":       d.NomeEleitoral,
		"siglaPartido":        d.Partido,
		"siglaUf":             d.UF,
		"sexo":                d.Sexo,
		"email":               d.Email,
		"urlFoto":             d.URLFoto,
		"situacao":            d.Situacao,
		"condicaoEleitoral":   d.Condicao,
		"dataNascimento":      optionalDate(d.Nascimento),
		"municipioNascimento": d.Municipio,
		"ufNascimento":        d.UFNascimento,
		"escolaridade":        d.Escolaridade,
		"urlWebsite":          d.Website,
		"redeSocial":          redes,
		"gabinete":            d.Gabinete,
	}
}

// deputadoItem is what extraction yields: the list entry, with the detail
// when it could be fetched
type deputadoItem struct {
	Resumo  deputadoResumo
	Detalhe *deputadoDetalhe
}

// DeputadosJob syncs the members of one legislature
type DeputadosJob struct{}

func (DeputadosJob) Name() string { return deputadosCollection }

func (DeputadosJob) Validate(jc *etl.JobContext) etl.ValidationResult {
	var v etl.ValidationResult
	if jc.Options.EntityID != "" {
		if _, err := strconv.Atoi(jc.Options.EntityID); err != nil {
			v.Errorf("--id expects a numeric deputy id, got %q", jc.Options.EntityID)
		}
	}
	if jc.Options.DateRange != nil {
		v.Warnf("deputados ignores --inicio/--fim")
	}
	return v
}

func (DeputadosJob) Extract(ctx context.Context, jc *etl.JobContext) (etl.Extracted[deputadoItem], error) {
	out := etl.Extracted[deputadoItem]{Timestamp: jc.Now()}

	var list []deputadoResumo
	if id := jc.Options.EntityID; id != "" {
		n, _ := strconv.Atoi(id)
		list = []deputadoResumo{{ID: n, IDLegislatura: jc.Period.Number}}
	} else {
		query := url.Values{}
		query.Set("idLegislatura", strconv.Itoa(jc.Period.Number))
		query.Set("ordem", "ASC")
		query.Set("ordenarPor", "nome")
		raws, err := fetchAll(ctx, jc, "/deputados", query)
		if err != nil {
			return out, err
		}
		list = decodeAll[deputadoResumo](jc, "deputados", raws)
	}
	out.Upstream = len(list)

	if jc.Options.BoolFlag("sem-detalhes") {
		for _, r := range list {
			out.Items = append(out.Items, deputadoItem{Resumo: r})
		}
		return out, nil
	}

	var complete bool
	out.Items, complete = etl.FanOutLimited(ctx, jc, "deputados", list, nil, func(ctx context.Context, r deputadoResumo) (deputadoItem, error) {
		d, err := fetchOne[deputadoDetalhe](ctx, jc, "/deputados/{id}", map[string]string{"id": strconv.Itoa(r.ID)})
		if err != nil {
			return deputadoItem{}, err
		}
		return deputadoItem{Resumo: r, Detalhe: &d}, nil
	})
	out.Truncated = !complete
	return out, nil
}

func (DeputadosJob) Transform(_ context.Context, jc *etl.JobContext, item deputadoItem) (Deputado, error) {
	r := item.Resumo
	if r.ID <= 0 {
		return Deputado{}, mapping("deputy without id")
	}

	d := Deputado{
		ID:          r.ID,
		Legislatura: jc.Period.Number,
		Nome:        r.Nome,
		Partido:     r.SiglaPartido,
		UF:          r.SiglaUF,
		Email:       r.Email,
		URLFoto:     r.URLFoto,
	}

	if det := item.Detalhe; det != nil {
		s := det.UltimoStatus
		d.NomeCivil = det.NomeCivil
		d.NomeEleitoral = s.NomeEleitoral
		d.Sexo = det.Sexo
		d.Situacao = s.Situacao
		d.Condicao = s.CondicaoEleitoral
		d.Nascimento = det.DataNascimento
		d.Municipio = det.MunicipioNascimento
		d.UFNascimento = det.UFNascimento
		d.Escolaridade = det.Escolaridade
		d.Website = det.URLWebsite
		d.RedesSociais = det.RedeSocial
		d.Gabinete = map[string]any{
			"nome":     s.Gabinete.Nome,
			"predio":   s.Gabinete.Predio,
			"sala":     s.Gabinete.Sala,
			"andar":    s.Gabinete.Andar,
			"telefone": s.Gabinete.Telefone,
			"email":    s.Gabinete.Email,
		}
		if d.Nome == "" {
			d.Nome = s.Nome
		}
		if d.Partido == "" {
			d.Partido = s.SiglaPartido
		}
		if d.UF == "" {
			d.UF = s.SiglaUF
		}
		if d.Email == "" {
			d.Email = s.Email
		}
		if d.URLFoto == "" {
			d.URLFoto = s.URLFoto
		}
	}

	if strings.TrimSpace(d.Nome) == "" {
		return Deputado{}, mapping("deputy %d has no name", r.ID)
	}
	return d, nil
}

func (DeputadosJob) Load(jc *etl.JobContext, d Deputado) ([]batch.Operation, error) {
	op, err := set(periodPath(jc, deputadosCollection, strconv.Itoa(d.ID)), d.document())
	if err != nil {
		return nil, err
	}
	return []batch.Operation{op}, nil
}

// Index lists the loaded deputies, ordered by name, with the per-party count
func (DeputadosJob) Index(jc *etl.JobContext, loaded []Deputado) ([]batch.Operation, error) {
	sorted := append([]Deputado(nil), loaded...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Nome < sorted[j].Nome })

	entries := make([]map[string]any, len(sorted))
	parties := make(map[string]any)
	for i, d := range sorted {
		entries[i] = map[string]any{
			"id":           d.ID,
			"nome":         d.Nome,
			"siglaPartido": d.Partido,
			"siglaUf":      d.UF,
			"urlFoto":      d.URLFoto,
		}
		n, _ := parties[d.Partido].(int)
		parties[d.Partido] = n + 1
	}

	ops, err := indexOps(jc, deputadosCollection, entries)
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		op.Data["porPartido"] = parties
	}
	return ops, nil
}

var deputadosFlags = []cli.FlagDoc{
	{Name: "--sem-detalhes", Help: "store list data only, skip /deputados/{id}"},
}
