package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"path"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lmfdb/lmfdb/cmd/lmfdbd/handlers"
	"github.com/lmfdb/lmfdb/pkg/ajax"
	"github.com/lmfdb/lmfdb/pkg/auth"
	"github.com/lmfdb/lmfdb/pkg/cache"
	"github.com/lmfdb/lmfdb/pkg/configs/server"
	"github.com/lmfdb/lmfdb/pkg/domain/knowl"
	"github.com/lmfdb/lmfdb/pkg/domain/lmfdb"
	"github.com/lmfdb/lmfdb/pkg/metrics"
	"github.com/lmfdb/lmfdb/pkg/utils/echoutil"
	"github.com/lmfdb/lmfdb/pkg/utils/filewatch"
	kstrings "github.com/lmfdb/lmfdb/pkg/utils/strings"
)

const ajaxPrefix = "/callback_ajax/"

func main() {
	configPath := flag.String("config-path", "", "server config path")
	loglevel := flag.String("loglevel", "", "log level. debug|info|warn|error|off. default: server.loglevel in config")
	flag.Parse()

	conf, err := server.LoadServerConfig(*configPath)
	if err != nil {
		log.Fatalf("can not read configration: %s", err)
	}
	if *loglevel == "" {
		*loglevel = conf.Server().LogLevel()
	}

	e := echo.New()
	e.Pre(middleware.AddTrailingSlash())
	echoutil.SetLevel(e, *loglevel)
	e.HTTPErrorHandler = echoutil.ErrorHandler(e)
	e.Use(echoutil.LogHandlerFunc)

	watched := []string{*configPath}
	if aconf := conf.Auth(); aconf != nil {
		watched = append(watched, aconf.SecretFile())
	}
	ctx, cancel, err := filewatch.UntilModifyContext(context.Background(), watched...)
	if err != nil {
		log.Fatalf("can not watch configration: %s", err)
	}
	defer cancel()

	db, err := lmfdb.New(ctx, conf, lmfdb.WithKnowlOptions(knowl.WithBaseURL("/knowledge/")))
	if err != nil {
		log.Fatalf("can not connect to database: %s", err)
	}
	defer db.Close(context.Background())

	// schema of database should be latest while serving.
	ctx, cancelSchema := db.Schema().Database().Context(ctx)
	defer cancelSchema()
	context.AfterFunc(ctx, func() {
		log.Printf("%s. quit to restart server.", context.Cause(ctx))
		graceful, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := e.Shutdown(graceful); err != nil {
			log.Printf("error on shutdown: %s", err)
		}
	})

	ajaxConf := conf.Ajax()
	pool := ajax.New(ajaxConf.Size(), ajaxConf.Expiration())
	go func() {
		if err := pool.Janitor(ctx, ajaxConf.JanitorInterval()); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("ajax janitor stopped: %s", err)
		}
	}()

	pages := cache.New(conf.Cache().Size(), conf.Cache().TTL())
	onChange := handlers.OnChange(pages.Purge)

	api := root("/api")
	knowledge := root("/knowledge")

	{
		id := "id"
		e.GET(api("knowls"), handlers.IndexKnowlHandler(db.Knowl()))
		e.GET(api("knowls/:id"), handlers.GetKnowlHandler(db.Knowl(), id))

		e.GET(
			knowledge("render/:id"),
			handlers.RenderKnowlHandler(db.Knowl(), id),
			pages.Middleware(),
		)
		e.POST(knowledge("render/:id"), handlers.PreviewKnowlHandler(db.Knowl(), id))

		if aconf := conf.Auth(); aconf != nil {
			signer, err := newSigner(aconf)
			if err != nil {
				log.Fatalf("can not set up editor tokens: %s", err)
			}
			editor := signer.Middleware()
			e.PUT(api("knowls/:id"), handlers.PutKnowlHandler(db.Knowl(), id, onChange), editor)
			e.DELETE(api("knowls/:id"), handlers.DeleteKnowlHandler(db.Knowl(), id, onChange), editor)
		} else {
			log.Println("auth is not configured. knowls are read-only.")
		}
	}

	{
		collection, label := "collection", "label"
		e.GET(
			api("records/:collection"),
			handlers.FindRecordsHandler(db.Record(), pool, ajaxPrefix, collection),
			pages.Middleware(),
		)
		e.GET(
			api("records/:collection/:label"),
			handlers.GetRecordHandler(db.Record(), collection, label),
			pages.Middleware(),
		)
	}

	e.GET(ajaxPrefix+":nonce/", handlers.AjaxHandler(pool, "nonce"))
	e.GET("/metrics/", echo.WrapHandler(metrics.Handler()))

	log.Println("registred routes:")
	for _, r := range e.Routes() {
		log.Println(r.Method, r.Path)
	}

	if err := e.Start(fmt.Sprintf(":%d", conf.Server().Port())); err != nil && !errors.Is(err, http.ErrServerClosed) {
		e.Logger.Fatal(err)
	}
}

func newSigner(conf *server.AuthConfig) (*auth.Signer, error) {
	secret, err := auth.LoadSecret(conf.SecretFile())
	if err != nil {
		return nil, err
	}
	return auth.New(secret, conf.Issuer(), conf.TokenTTL())
}

// root creates path factory under r.
//
// Paths made by it are "/" terminated, as middleware.AddTrailingSlash rewrites requests so.
func root(r string) func(...string) string {
	return func(s ...string) string {
		p := path.Join(append([]string{"/", r}, s...)...)
		return kstrings.SuppySuffix("/"+kstrings.TrimPrefixAll(p, "/"), "/")
	}
}
