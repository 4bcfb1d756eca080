package postgres

// SQL queries for the observation log.

const (
	// queryInsertObservation appends one row. seq is assigned by the database and
	// defines log order.
	queryInsertObservation = `
		INSERT INTO observations (
			observed_at, source, name, price, identifier, link, image
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	// queryLoadObservations reads the full log in append order.
	// price is cast to text so malformed values surface as row errors, not scan failures.
	queryLoadObservations = `
		SELECT
			seq, observed_at, source, name, price::text, identifier, link, image
		FROM observations
		ORDER BY seq ASC
	`

	queryObservationsTableExists = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = 'observations'
		)
	`
)
