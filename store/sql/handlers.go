package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func exchangeLedgerHandlers() repository.ModelHandlers[*exchangeLedgerRecord] {
	return repository.ModelHandlers[*exchangeLedgerRecord]{
		NewRecord: func() *exchangeLedgerRecord {
			return &exchangeLedgerRecord{}
		},
		GetID: func(record *exchangeLedgerRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *exchangeLedgerRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "exchange_key"
		},
		GetIdentifierValue: func(record *exchangeLedgerRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ExchangeKey)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
