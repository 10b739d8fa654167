package db

const (
	insertPrinter = `
		INSERT INTO printers (id, name, address, port, transport, is_active, categories_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	getPrinterByID = `
		SELECT id, name, address, port, transport, is_active, categories_json, created_at, updated_at
		FROM printers WHERE id = ?
	`

	listPrinters = `
		SELECT id, name, address, port, transport, is_active, categories_json, created_at, updated_at
		FROM printers ORDER BY name ASC
	`

	countPrinters = `SELECT COUNT(*) FROM printers`

	countActivePrintersAtEndpoint = `
		SELECT COUNT(*) FROM printers
		WHERE address = ? AND port = ? AND transport = ? AND is_active = 1 AND id != ?
	`

	updatePrinter = `
		UPDATE printers SET
			name = ?, address = ?, port = ?, transport = ?, is_active = ?, categories_json = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	deletePrinter = `DELETE FROM printers WHERE id = ?`
)

const (
	insertMapping = `
		INSERT INTO category_mappings (id, category_id, printer_id, priority, is_active)
		VALUES (?, ?, ?, ?, ?)
	`

	getMappingByID = `
		SELECT id, category_id, printer_id, priority, is_active, created_at, updated_at
		FROM category_mappings WHERE id = ?
	`

	getMappingByPair = `
		SELECT id, category_id, printer_id, priority, is_active, created_at, updated_at
		FROM category_mappings WHERE category_id = ? AND printer_id = ?
	`

	listMappings = `
		SELECT id, category_id, printer_id, priority, is_active, created_at, updated_at
		FROM category_mappings ORDER BY category_id ASC, priority ASC, created_at ASC
	`

	listActiveMappingsForCategory = `
		SELECT id, category_id, printer_id, priority, is_active, created_at, updated_at
		FROM category_mappings
		WHERE category_id = ? AND is_active = 1
		ORDER BY priority ASC, rowid ASC
	`

	updateMapping = `
		UPDATE category_mappings SET
			category_id = ?, printer_id = ?, priority = ?, is_active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	deleteMapping = `DELETE FROM category_mappings WHERE id = ?`
)

const (
	insertJob = `
		INSERT INTO print_jobs (id, order_id, printer_id, items_json, template, status, retry_count, metadata_json, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	getJobByID = `
		SELECT id, order_id, printer_id, items_json, template, status, retry_count, metadata_json, error_message, created_at, completed_at
		FROM print_jobs WHERE id = ?
	`

	listJobIDsByStatus = `
		SELECT id FROM print_jobs WHERE status = ? ORDER BY created_at ASC
	`

	markJobPrinting = `
		UPDATE print_jobs SET status = 'printing' WHERE id = ? AND status = 'pending'
	`

	markJobCompleted = `
		UPDATE print_jobs SET status = 'completed', completed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'printing'
	`

	markJobFailed = `
		UPDATE print_jobs SET status = 'failed', error_message = ?, retry_count = retry_count + 1,
			completed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'printing'
	`

	saveJob = `
		UPDATE print_jobs SET status = ?, retry_count = ?, metadata_json = ?, error_message = ?, completed_at = ?
		WHERE id = ?
	`

	recoverPrintingJobs = `
		UPDATE print_jobs SET status = 'pending' WHERE status = 'printing'
	`

	resetJobForRetry = `
		UPDATE print_jobs SET status = 'pending', error_message = '', completed_at = NULL
		WHERE id = ? AND status = 'failed'
	`

	countJobsByStatus = `SELECT status, COUNT(*) FROM print_jobs GROUP BY status`
)
