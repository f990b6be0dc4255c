package main

import (
	"go.uber.org/fx"

	"github.com/cargomesh/freightbid/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
