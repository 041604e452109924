package main

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/Suhaibinator/SRest/pkg/codec"
	"github.com/Suhaibinator/SRest/pkg/common"
	"github.com/Suhaibinator/SRest/pkg/server"
)

// person is the resource served by the demo people API.
type person struct {
	Name string `json:"name" form:"name"`
	Age  int    `json:"age" form:"age"`
}

// peopleStore is an in-memory people API: list, fetch and set the age of a person.
type peopleStore struct {
	mu     sync.RWMutex
	people map[string]person
}

func newPeopleStore() *peopleStore {
	return &peopleStore{people: make(map[string]person)}
}

// register adds the body stages and routes of the people API to s.
func (p *peopleStore) register(s *server.Server) error {
	if err := s.AddPostHandler(codec.JSONEncoder()); err != nil {
		return err
	}
	// Each decoder only takes bodies naming its Content-Type.
	if err := s.AddPreHandler(codec.FormDecoder[person]()); err != nil {
		return err
	}
	if err := s.AddPreHandler(codec.JSONDecoder[person]()); err != nil {
		return err
	}

	if err := s.Get("/people", common.RequestHandlerFunc(p.list)); err != nil {
		return err
	}
	if err := s.Get("/people/:name", common.RequestHandlerFunc(p.get)); err != nil {
		return err
	}
	if err := s.GetAs("/people/:name", "text/plain", common.RequestHandlerFunc(p.getText)); err != nil {
		return err
	}
	return s.Post("/people/:name/age", common.RequestHandlerFunc(p.setAge))
}

func (p *peopleStore) list(ctx common.Context, req *common.Request) {
	p.mu.RLock()
	all := make([]person, 0, len(p.people))
	for _, v := range p.people {
		all = append(all, v)
	}
	p.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	ctx.Send(req, common.OK().WithBody(all))
}

func (p *peopleStore) lookup(name string) (person, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.people[name]
	return v, ok
}

func (p *peopleStore) get(ctx common.Context, req *common.Request) {
	v, ok := p.lookup(req.PathParam("name"))
	if !ok {
		ctx.Send(req, common.NotFound())
		return
	}
	ctx.Send(req, common.OK().WithBody(v))
}

func (p *peopleStore) getText(ctx common.Context, req *common.Request) {
	v, ok := p.lookup(req.PathParam("name"))
	if !ok {
		ctx.Send(req, common.NotFound())
		return
	}
	ctx.Send(req, common.OK().
		WithBody([]byte(fmt.Sprintf("%s is %d", v.Name, v.Age))).
		WithHeader("Content-Type", "text/plain; charset=utf-8"))
}

func (p *peopleStore) setAge(ctx common.Context, req *common.Request) {
	in, ok := codec.Body[person](req)
	if !ok {
		herr := common.NewHTTPError(http.StatusBadRequest, "expected a form or JSON body with an age")
		ctx.Send(req, herr.Response().WithBody([]byte(herr.Message)))
		return
	}

	v := person{Name: req.PathParam("name"), Age: in.Age}
	p.mu.Lock()
	_, existed := p.people[v.Name]
	p.people[v.Name] = v
	p.mu.Unlock()

	resp := common.Created()
	if existed {
		resp = common.OK()
	}
	ctx.Send(req, resp.WithBody(v))
}

func healthHandler() common.RequestHandler {
	return common.RequestHandlerFunc(func(ctx common.Context, req *common.Request) {
		ctx.Send(req, common.OK().WithBody([]byte("ok")))
	})
}
