package app

import (
	"github.com/shipline/shipline/internal/registry"
	"github.com/shipline/shipline/modules/cache"
	"github.com/shipline/shipline/modules/checkout"
	"github.com/shipline/shipline/modules/dispatch"
	"github.com/shipline/shipline/modules/publish"
	"github.com/shipline/shipline/modules/run"
	"github.com/shipline/shipline/modules/runtime"
	"github.com/shipline/shipline/modules/version"
)

// coreModules is the definitive list of step modules compiled into the
// shipline binary.
var coreModules = []registry.Module{
	&checkout.Module{},
	&runtime.Module{},
	&run.Module{},
	&cache.Module{},
	&version.Module{},
	&publish.Module{},
	&dispatch.Module{},
}
