package database

func (d *Database) RunMigrations() error {
	if err := d.db.AutoMigrate(&SessionRecord{}); err != nil {
		return err
	}

	// Stale sessions are swept by expiry
	return d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_sessions_expires_at
		ON sessions(expires_at);
	`).Error
}
