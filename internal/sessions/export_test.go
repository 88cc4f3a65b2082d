package sessions

import "database/sql"

// BumpSchemaVersion rewrites the stored version so Open sees a foreign schema.
func BumpSchemaVersion(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec("UPDATE schema_version SET version = ?", schemaVersion+1)
	return err
}
