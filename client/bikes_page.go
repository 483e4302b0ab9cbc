package client

import (
	"context"
	"html/template"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

var bikesTable = template.Must(template.New("bikes").Parse(`<div>
<h1>Bikes</h1>
<table>
<tbody>
<tr><th>Brand</th><th>Model</th><th>year</th></tr>
{{- range .}}
<tr class="bike"><td>{{.Brand}}</td><td>{{.Model}}</td><td>{{.ModelYear}}</td></tr>
{{- end}}
</tbody>
</table>
</div>
`))

// Lister is the part of Client the page needs.
type Lister interface {
	ListBikes(ctx context.Context) ([]Bike, error)
}

// BikesPage holds the listing state. It starts empty, fills once Mount's
// fetch succeeds and stays empty if it fails.
type BikesPage struct {
	api Lister
	log logrus.FieldLogger

	mu    sync.RWMutex
	bikes []Bike
}

func NewBikesPage(api Lister, log logrus.FieldLogger) *BikesPage {
	return &BikesPage{api: api, log: log}
}

// Mount starts the single fetch in the background. The returned channel is
// closed once the fetch has finished, whatever its outcome. Errors are only
// logged.
func (p *BikesPage) Mount(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		bikes, err := p.api.ListBikes(ctx)
		if err != nil {
			p.log.WithError(err).Error("Error")
			return
		}
		p.setState(bikes)
	}()
	return done
}

func (p *BikesPage) setState(bikes []Bike) {
	p.mu.Lock()
	p.bikes = bikes
	p.mu.Unlock()
}

// Bikes returns the current state.
func (p *BikesPage) Bikes() []Bike {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Bike(nil), p.bikes...)
}

// Render writes the table with one row per bike in the current state.
func (p *BikesPage) Render(w io.Writer) error {
	return bikesTable.Execute(w, p.Bikes())
}
