package api

import (
	"log/slog"

	"github.com/UkralStul/matchboard/internal/board"
	"github.com/UkralStul/matchboard/internal/storage"
	"github.com/UkralStul/matchboard/internal/trust"
)

// Resolver - корневая структура обработчиков.
// Она содержит все зависимости, которые нужны для выполнения запросов.
type Resolver struct {
	Storage  storage.Storage
	Core     *trust.Core
	Board    *board.Board
	Identity IdentityResolver
	Logger   *slog.Logger
}
