package main

import (
	"errors"
	"fmt"
)

type FeePayer struct {
}

func (r *FeePayer) Run(kongCtx *CLIContext) error {
	pool := kongCtx.Clients.Pool
	if pool.Size() == 0 {
		return errors.New("no fee payers")
	}
	for _, pk := range pool.PublicKeys() {
		fmt.Println(pk.String())
	}
	return nil
}
