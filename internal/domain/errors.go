package domain

import "errors"

var (
	// ErrMissingCredentials はAPIキーまたは署名ヘッダーが無い場合のエラー。
	ErrMissingCredentials = errors.New("missing authentication headers")

	// ErrInvalidKey はAPIキーが一致しない場合のエラー。
	ErrInvalidKey = errors.New("invalid API key")

	// ErrInvalidSignature は本文署名が一致しない場合のエラー。
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrCredentialsNotFound はAPIキーまたはシークレットが未生成の場合のエラー。
	ErrCredentialsNotFound = errors.New("credentials not found")

	// ErrPostNotFound は指定された投稿が存在しない場合のエラー。
	ErrPostNotFound = errors.New("post not found")

	// ErrEmptyPost はタイトル・本文・抜粋がすべて空の場合のエラー。
	ErrEmptyPost = errors.New("content, title, and excerpt are empty")

	// ErrMediaFetchDisabled は外部メディア取得が無効化されている場合のエラー。
	ErrMediaFetchDisabled = errors.New("media fetch is disabled")

	// ErrMediaRejected は取得先URLや内容が受け入れられない場合のエラー。
	ErrMediaRejected = errors.New("media rejected")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrMigrationFileNotFound はマイグレーションファイルが見つからない場合のエラー。
	ErrMigrationFileNotFound = errors.New("migration file not found")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)
