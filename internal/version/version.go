package version

import "fmt"

// Заполняется через -ldflags при сборке релиза.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Version возвращает семантическую версию сборки.
func Version() string { return version }

// Commit возвращает git-коммит сборки.
func Commit() string { return commit }

// Date возвращает дату сборки.
func Date() string { return date }

// String возвращает строку для логов при старте.
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
