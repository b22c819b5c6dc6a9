package domain

import "time"

// MigrationStatus はスキーマ変更ファイルの適用状態。
type MigrationStatus string

const (
	MigrationStatusPending MigrationStatus = "pending"
	MigrationStatusApplied MigrationStatus = "applied"
)

// Migration は migrations ディレクトリの1ファイル（{version}_{name}.sql）を表す。
// 未適用なら AppliedAt は nil。
type Migration struct {
	Version   string
	Name      string
	FilePath  string
	Status    MigrationStatus
	AppliedAt *time.Time
}

// MarkApplied は適用済みの状態にする。
func (m *Migration) MarkApplied(at time.Time) {
	m.Status = MigrationStatusApplied
	m.AppliedAt = &at
}
