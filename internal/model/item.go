// Package model はドメインモデルを定義する。
package model

import "time"

// Item は小道具カタログの1アイテムを表す。
// OwnerIDは作成時のログインユーザーIDで固定され、
// 更新・削除はOwnerID本人のみが行える。
type Item struct {
	ID          string
	Name        string
	Description string
	Location    string
	ImagePath   string
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ItemWithOwner はアイテムと所有者情報を結合した一覧表示用の構造体。
type ItemWithOwner struct {
	Item
	OwnerName    string
	OwnerContact string
	OwnerAvatar  string
}
