package auth

import (
	"sort"

	"github.com/hitoshi/propsdb/internal/model"
)

// Registry は有効化されたOAuthプロバイダーの名前引きを提供する。
// 登録はサーバー起動時に一度だけ行われるため、ロックは持たない。
type Registry struct {
	providers map[string]OAuthProvider
}

// NewRegistry はRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]OAuthProvider)}
}

// Register はプロバイダーを名前で登録する。同名の再登録は上書きになる。
func (r *Registry) Register(name string, provider OAuthProvider) {
	r.providers[name] = provider
}

// Lookup は名前でプロバイダーを取得する。
// 未登録の名前にはUNKNOWN_PROVIDERエラーを返す。
func (r *Registry) Lookup(name string) (OAuthProvider, error) {
	provider, ok := r.providers[name]
	if !ok {
		return nil, model.NewUnknownProviderError(name)
	}
	return provider, nil
}

// Names は登録済みプロバイダー名をソートして返す。
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
