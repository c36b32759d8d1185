package repos

import (
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// OpenDB opens the sqlite database, applies migrations and seeds baseline data.
func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer keeps sqlite from returning SQLITE_BUSY and lets :memory: share a single database
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	if err := seedProducts(db); err != nil {
		return nil, err
	}
	if err := seedUsers(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(db *sqlx.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("migrations driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// seedProducts inserts the demo catalog. Safe to run on every startup.
func seedProducts(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM products`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	log.Println("[seed] inserting demo products")

	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()
	tx.MustExec(`INSERT INTO products(id,sku,title,description,price,product_type,logo,images_json,digital_files_json) VALUES
	  ('print-fuji','PR-FUJI-A3','Mount Fuji at Dawn (A3 print)','Archival giclee print','50.00','PHYSICAL',
	     'products/print-fuji/logo.jpg','["products/print-fuji/main.jpg","products/print-fuji/detail.jpg"]','[]'),
	  ('guide-kyoto','EB-KYOTO','Kyoto in 5 Days (e-book)','Itinerary, maps and tips','12.00','DIGITAL',
	     'products/guide-kyoto/logo.jpg','["products/guide-kyoto/cover.jpg"]','["downloads/guide-kyoto.pdf","downloads/guide-kyoto.epub"]'),
	  ('preset-pack','PS-FILM','Film Look Lightroom Presets','12 presets','19.99','DIGITAL',
	     'products/preset-pack/logo.jpg','["products/preset-pack/main.jpg"]','["downloads/film-presets.zip"]'),
	  ('sticker-map','ST-MAP','World Map Sticker','Free with any order','0.00','PHYSICAL',
	     'products/sticker-map/logo.jpg','["products/sticker-map/main.jpg"]','[]'),
	  ('tee-wander','TS-WANDER','Wanderlust Tee','Organic cotton','25.00','PHYSICAL',
	     'products/tee-wander/logo.jpg','["products/tee-wander/front.jpg"]','[]')`)
	return tx.Commit()
}

// seedUsers ensures the demo accounts exist (idempotent).
func seedUsers(db *sqlx.DB) error {
	type u struct {
		ID, Email, Name, Role, Hash string
	}
	mk := func(id, email, name, role, raw string) (u, error) {
		h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
		return u{ID: id, Email: email, Name: name, Role: role, Hash: string(h)}, err
	}

	var users []u
	for _, s := range [][4]string{
		{"u-alice", "alice@wanderlust.test", "Alice", "USER"},
		{"u-bob", "bob@wanderlust.test", "Bob", "USER"},
		{"u-admin", "admin@wanderlust.test", "Admin", "ADMIN"},
	} {
		x, err := mk(s[0], s[1], s[2], s[3], "Passw0rd!")
		if err != nil {
			return err
		}
		users = append(users, x)
	}

	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()
	for _, x := range users {
		if _, err := tx.Exec(`
			INSERT INTO users(id,email,name,password_hash,role)
			VALUES(?,?,?,?,?)
			ON CONFLICT(email) DO NOTHING
		`, x.ID, x.Email, x.Name, x.Hash, x.Role); err != nil {
			return err
		}
	}
	return tx.Commit()
}
