package source

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/alitagps/tk103/cli/receiver/types"
)

// Postgres is the production Primary implementation.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("PostgreSQL connection failed: %v", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("PostgreSQL is unreachable: %v", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) FindLastLocation(imei uint64) (float64, float64, error) {
	var lat, lon float64
	query := `SELECT latitude, longitude FROM location WHERE imei = $1 ORDER BY id DESC LIMIT 1`
	err := p.db.QueryRow(query, imei).Scan(&lat, &lon)
	if err == sql.ErrNoRows {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query last location: %v", err)
	}
	return lat, lon, nil
}

func (p *Postgres) GetVehicle(imei uint64) (*types.Vehicle, error) {
	v := types.Vehicle{}
	query := `SELECT owner, imei, "key", sim_number, plate FROM vehicle WHERE imei = $1 AND active`
	err := p.db.QueryRow(query, imei).Scan(&v.Owner, &v.IMEI, &v.Key, &v.SimNumber, &v.Plate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicle: %v", err)
	}
	return &v, nil
}

func (p *Postgres) GetAllVehicles() ([]types.Vehicle, error) {
	query := `SELECT owner, imei, "key", sim_number, plate FROM vehicle WHERE active`
	rows, err := p.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %v", err)
	}
	defer rows.Close()

	var vehicles []types.Vehicle
	for rows.Next() {
		v := types.Vehicle{}
		if err := rows.Scan(&v.Owner, &v.IMEI, &v.Key, &v.SimNumber, &v.Plate); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %v", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
