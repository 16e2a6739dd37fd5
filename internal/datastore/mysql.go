package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"

	"github.com/tphakala/sleepmon/internal/conf"
	"github.com/tphakala/sleepmon/internal/errors"
)

// MySQLDSN builds the driver DSN for settings.
func MySQLDSN(s conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		s.Username, s.Password, s.Host, s.Port, s.Database)
}

// OpenMySQLIndex opens an index in a MySQL database.
func OpenMySQLIndex(s conf.MySQLSettings) (*Index, error) {
	if s.Host == "" || s.Database == "" {
		return nil, errors.ValidationError("mysql index needs host and database")
	}
	target := fmt.Sprintf("%s:%d/%s", s.Host, s.Port, s.Database)
	return newIndex(mysql.Open(MySQLDSN(s)), conf.IndexMySQL, target)
}
