package lsp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/dvql"
)

// Commands accepted by workspace/executeCommand.
const (
	CommandSetActiveEnvironment   = "dvql.setActiveEnvironment"
	CommandClearActiveEnvironment = "dvql.clearActiveEnvironment"
	CommandClearMetadataCache     = "dvql.clearMetadataCache"
	CommandCacheStats             = "dvql.cacheStats"
	CommandExecuteQuery           = "dvql.executeQuery"
	CommandToFetchXML             = "dvql.toFetchXml"
)

// Command errors.
var (
	ErrUnknownCommand      = errors.New("unknown command")
	ErrInvalidArgument     = errors.New("invalid command argument")
	ErrNoActiveEnvironment = errors.New("no active environment")
)

// Commands returns the names of the commands the server executes.
func Commands() []string {
	return []string{
		CommandSetActiveEnvironment,
		CommandClearActiveEnvironment,
		CommandClearMetadataCache,
		CommandCacheStats,
		CommandExecuteQuery,
		CommandToFetchXML,
	}
}

// ExecuteCommand handles workspace/executeCommand.
//
// Query commands take either the URI of an open document or the query text.
func (s *Server) ExecuteCommand(_ context.Context, params *protocol.ExecuteCommandParams) (any, error) {
	s.logger.Debug("ExecuteCommand",
		zap.String("command", params.Command),
		zap.Int("args", len(params.Arguments)))

	switch params.Command {
	case CommandSetActiveEnvironment:
		id, err := stringArg(params.Arguments, 0)
		if err != nil {
			return nil, err
		}

		s.env.SetActiveEnvironment(id)

		return nil, nil //nolint:nilnil
	case CommandClearActiveEnvironment:
		s.env.ClearActiveEnvironment()

		return nil, nil //nolint:nilnil
	case CommandClearMetadataCache:
		if len(params.Arguments) == 0 {
			s.cache.ClearAllCaches()

			return nil, nil //nolint:nilnil
		}

		id, err := stringArg(params.Arguments, 0)
		if err != nil {
			return nil, err
		}

		s.cache.ClearEnvironmentCache(id)

		return nil, nil //nolint:nilnil
	case CommandCacheStats:
		return s.cache.Stats(), nil
	case CommandExecuteQuery:
		if !s.env.HasActiveEnvironment() {
			return nil, ErrNoActiveEnvironment
		}

		query, err := s.queryArg(params.Arguments, false)
		if err != nil {
			return nil, err
		}

		return s.env.RequestQueryExecution(query), nil
	case CommandToFetchXML:
		query, err := s.queryArg(params.Arguments, true)
		if err != nil {
			return nil, err
		}

		return dvql.QueryToFetchXML(query)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, params.Command)
	}
}

// queryArg resolves the first argument to query text. Open document URIs are
// replaced by the document content; sqlOnly rejects FetchXML documents.
func (s *Server) queryArg(args []any, sqlOnly bool) (string, error) {
	arg, err := stringArg(args, 0)
	if err != nil {
		return "", err
	}

	if doc, ok := s.getDocument(protocol.DocumentURI(arg)); ok {
		if sqlOnly && doc.Language != LanguageSQL {
			return "", fmt.Errorf("%w: %s is not a SQL document", ErrInvalidArgument, arg)
		}

		arg = doc.Content
	}

	if strings.TrimSpace(arg) == "" {
		return "", fmt.Errorf("%w: empty query", ErrInvalidArgument)
	}

	return arg, nil
}

func stringArg(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%w: missing argument %d", ErrInvalidArgument, i)
	}

	str, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: argument %d is %T, not a string", ErrInvalidArgument, i, args[i])
	}

	return str, nil
}
