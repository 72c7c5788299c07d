// Command trifocal-init runs the projective structure-from-motion
// initializer's HTTP trigger server against a sqlite-backed image
// store.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/api"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/diag"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/graph"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/imagestore"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/pipeline"
)

var (
	listen      = flag.String("listen", ":8090", "listen address for the reconstruction trigger server")
	dbPath      = flag.String("db-path", "viewgraph.db", "path to the sqlite image store")
	logLevel    = flag.String("log-level", "ops", "verbose logging level: ops, diag, or trace")
	versionFlag = flag.Bool("version", false, "print version information and exit")
	topDownDir  = flag.String("topdown-dir", "", "if set, save a top-down camera/point plot PNG here after every successful reconstruction")
)

const version = "0.1.0"

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println("trifocal-init", version)
		return
	}

	configureLogging(*logLevel)

	store, err := imagestore.OpenSQLiteStore(*dbPath)
	if err != nil {
		log.Fatalf("opening image store %s: %v", *dbPath, err)
	}
	defer store.Close()

	// The pairwise image graph is an external collaborator (spec's
	// out-of-scope construction); an empty graph here is the starting
	// point a real deployment populates before serving requests.
	g := graph.New()

	orch := pipeline.New(g, store)
	server := api.NewServer(orch)
	if *topDownDir != "" {
		if err := os.MkdirAll(*topDownDir, 0o755); err != nil {
			log.Fatalf("creating topdown-dir %s: %v", *topDownDir, err)
		}
		server.SetDiagnosticsDir(*topDownDir)
	}

	log.Printf("trifocal-init %s listening on %s (db=%s)", version, *listen, *dbPath)
	if err := http.ListenAndServe(*listen, server.ServeMux()); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func configureLogging(level string) {
	switch level {
	case "trace":
		diag.SetLogWriters(diag.LogWriters{Ops: os.Stderr, Diag: os.Stderr, Trace: os.Stderr})
	case "diag":
		diag.SetLogWriters(diag.LogWriters{Ops: os.Stderr, Diag: os.Stderr})
	default:
		diag.SetLogWriters(diag.LogWriters{Ops: os.Stderr})
	}
}
