package item

import "github.com/hitoshi/propsdb/internal/model"

// AuthorizeMutation はアイテムの変更操作が許可されるかを判定する。
// requesterIDがownerIDと一致する場合のみnilを返す。
// 未ログイン（requesterIDが空）は常に拒否される。
// この判定は副作用を持たず、同じ入力に対して常に同じ結果を返す。
func AuthorizeMutation(requesterID, ownerID string) error {
	if requesterID == "" {
		return model.NewUnauthenticatedError()
	}
	if requesterID != ownerID {
		return model.NewNotOwnerError()
	}
	return nil
}
