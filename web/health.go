package web

import (
	"context"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
)

type healthInternal struct {
	hasStarted bool
	isHealthy  bool
}

func loopHealth(
	ctx context.Context,
	healthC <-chan func(*healthInternal),
) {

	doneC := ctx.Done()
	in := new(healthInternal)

out:
	for {
		select {
		case <-doneC:
			break out
		case req := <-healthC:
			req(in)
		}
	}
}

func (e1 *external) Health(status bool) {
	doneC := e1.ctx.Done()
	select {
	case <-doneC:
	case e1.healthC <- func(hi *healthInternal) {
		hi.isHealthy = status
	}:
	}
}

// Started marks that the server has successfully started.
func (e1 *external) Started() {
	doneC := e1.ctx.Done()
	select {
	case <-doneC:
	case e1.healthC <- func(hi *healthInternal) {
		log.Debug("setting has started=true")
		hi.hasStarted = true
		hi.isHealthy = true
	}:
	}
}

func (e1 *external) probe(w http.ResponseWriter, check func(*healthInternal) error) {
	doneC := e1.ctx.Done()

	errorC := make(chan error, 1)
	select {
	case <-doneC:
		errorC <- errors.New("canceled")
	case e1.healthC <- func(hi *healthInternal) {
		errorC <- check(hi)
	}:
	}
	var err error
	select {
	case err = <-errorC:
	case <-doneC:
		err = errors.New("canceled")
	}
	if err == nil {
		w.WriteHeader(http.StatusOK)
	} else {
		log.Debugf("probe failed: %s", err.Error())
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (e1 *external) startup(w http.ResponseWriter, r *http.Request) {
	e1.probe(w, func(hi *healthInternal) error {
		if !hi.hasStarted {
			return errors.New("not started")
		}
		return nil
	})
}

func (e1 *external) liveness(w http.ResponseWriter, r *http.Request) {
	e1.probe(w, func(hi *healthInternal) error {
		if !hi.isHealthy {
			return errors.New("not healthy")
		}
		return nil
	})
}
