// Command intelnews はニュースポータルのAPIサーバー・記事ストア・RSSインポーターを1つのバイナリで提供する。
//
//	intelnews [serve|store|worker|export|migrate|healthcheck]
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/intelnews/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
