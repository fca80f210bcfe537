package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testReplace = ReplaceConfig{Schema: "staging", Table: "dim_fundo", Columns: []string{"cnpj", "nome"}}

func TestReplaceTable_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "staging"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "staging"."dim_fundo" \("cnpj" TEXT, "nome" TEXT\)`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`TRUNCATE TABLE "staging"."dim_fundo"`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"staging", "dim_fundo"}, []string{"cnpj", "nome"}).WillReturnResult(2)
	mock.ExpectCommit()

	n, err := ReplaceTable(context.Background(), mock, testReplace, [][]any{{"1", "Um"}, {"2", nil}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTable_EmptyRowsStillTruncates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := ReplaceConfig{Table: "dim_gestora", Columns: []string{"gestora"}}
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "dim_gestora"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`TRUNCATE TABLE "dim_gestora"`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCommit()

	n, err := ReplaceTable(context.Background(), mock, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTable_CopyErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE SCHEMA").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("TRUNCATE").WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"staging", "dim_fundo"}, []string{"cnpj", "nome"}).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err = ReplaceTable(context.Background(), mock, testReplace, [][]any{{"1", "Um"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO staging.dim_fundo")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTable_BeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(fmt.Errorf("connection refused"))

	_, err = ReplaceTable(context.Background(), mock, testReplace, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
}

func TestReplaceTable_Validation(t *testing.T) {
	_, err := ReplaceTable(context.Background(), nil, ReplaceConfig{Columns: []string{"a"}}, nil)
	assert.ErrorContains(t, err, "no table specified")

	_, err = ReplaceTable(context.Background(), nil, ReplaceConfig{Table: "t"}, nil)
	assert.ErrorContains(t, err, "no columns specified")
}
