package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicateIdentity は(provider, provider_user_id)の一意制約違反を表す。
// 同一IdPアカウントの同時初回ログインで負けた側のトランザクションが受け取る。
// 呼び出し側は既存行を再取得して解決する。
var ErrDuplicateIdentity = errors.New("identity already exists")

// uniqueViolationCode はPostgreSQLのunique_violationエラーコード。
const uniqueViolationCode = "23505"

// isUniqueViolation はPostgreSQLの一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}
