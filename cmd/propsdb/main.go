package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/hitoshi/propsdb/internal/app"
)

func main() {
	// 開発環境用に.envを読み込む。存在しない場合は環境変数だけで動く。
	_ = godotenv.Load()

	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "propsdb: %v\n", err)
		os.Exit(1)
	}
}
