package jobs

import (
	"github.com/teranos/legisync/cli"
	"github.com/teranos/legisync/etl"
)

// Entry describes a registered job
type Entry struct {
	Name        string
	Description string
	Flags       []cli.FlagDoc // job-specific flags, shown in --ajuda
	Runner      etl.Runner
}

// Usage renders the job's help text
func (e Entry) Usage() string {
	return cli.Usage(e.Name, e.Description, e.Flags)
}

// Registry returns every job, in the order they are listed in help output
func Registry() []Entry {
	return []Entry{
		{
			Name:        deputadosCollection,
			Description: "Sync the deputies of a legislature, with their detail records",
			Flags:       deputadosFlags,
			Runner:      etl.NewEngine[deputadoItem, Deputado](DeputadosJob{}),
		},
		{
			Name:        orgaosCollection,
			Description: "Sync committees and other bodies active during a legislature",
			Flags:       orgaosFlags,
			Runner:      etl.NewEngine[orgaoItem, Orgao](OrgaosJob{}),
		},
		{
			Name:        votacoesCollection,
			Description: "Sync roll-call votes held during a legislature, with each deputy's vote",
			Flags:       votacoesFlags,
			Runner:      etl.NewEngine[votacaoItem, Votacao](VotacoesJob{}),
		},
		{
			Name:        discursosCollection,
			Description: "Sync plenary speeches per deputy",
			Flags:       discursosFlags,
			Runner:      etl.NewEngine[discursoItem, Discurso](DiscursosJob{}),
		},
		{
			Name:        liderancasCollection,
			Description: "Sync party leaderships",
			Runner:      etl.NewEngine[partidoItem, Lideranca](LiderancasJob{}),
		},
	}
}

// Lookup finds a job by name
func Lookup(name string) (Entry, bool) {
	for _, e := range Registry() {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}
