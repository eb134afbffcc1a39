package pgx

const (
	sourceColumns = `
	s.id,
	s.deposit_amount,
	s.withdrawal_amount,
	s.category,
	s.important_transaction_type,
	s.transaction_date,
	s.memo,
	s.creditor_name`

	targetColumns = `
	t.id,
	t.deposit_amount,
	t.withdrawal_amount,
	t.category,
	t.important_transaction_type,
	t.transaction_date,
	t.memo,
	t.creditor_name`
)

// relationSelect yields the relation columns followed by both endpoint
// projections. Endpoints are LEFT JOINed so orphaned relations still come back.
const relationSelect = `
SELECT
	r.id::text,
	COALESCE(r.source_tx_id, ''),
	COALESCE(r.target_tx_id, ''),
	r.confidence,` + sourceColumns + `,` + targetColumns + `
FROM transaction_relations r
LEFT JOIN transactions s ON s.id = r.source_tx_id
LEFT JOIN transactions t ON t.id = r.target_tx_id
`

const listRelationsSQL = relationSelect + `
WHERE r.case_id = $1
ORDER BY r.created_at, r.id
`

const listRelationsBetweenSQL = relationSelect + `
WHERE r.case_id = $1
  AND r.source_tx_id = ANY($2::text[])
  AND r.target_tx_id = ANY($2::text[])
ORDER BY r.created_at, r.id
`

const getTransactionsSQL = `
SELECT
	x.id,
	x.deposit_amount,
	x.withdrawal_amount,
	x.category,
	x.important_transaction_type,
	x.transaction_date,
	x.memo,
	x.creditor_name
FROM transactions x
WHERE x.id = ANY($1::text[])
ORDER BY x.transaction_date, x.id
`

const findExistingChainsSQL = `
SELECT c.start_tx_id, c.end_tx_id, c.chain_type
FROM transaction_chains c
JOIN unnest($2::text[], $3::text[], $4::text[]) AS k(start_tx_id, end_tx_id, chain_type)
  ON c.start_tx_id = k.start_tx_id
 AND c.end_tx_id = k.end_tx_id
 AND c.chain_type = k.chain_type
WHERE c.case_id = $1
`

const insertChainsSQL = `
INSERT INTO transaction_chains (
	id, case_id, start_tx_id, end_tx_id, chain_type,
	chain_depth, path, total_amount, confidence_score, created_at
)
SELECT
	u.id::uuid, u.case_id, u.start_tx_id, u.end_tx_id, u.chain_type,
	u.chain_depth, u.path, u.total_amount::numeric, u.confidence_score, u.created_at
FROM unnest(
	$1::text[], $2::text[], $3::text[], $4::text[], $5::text[],
	$6::int4[], $7::text[], $8::text[], $9::float8[], $10::timestamptz[]
) AS u(
	id, case_id, start_tx_id, end_tx_id, chain_type,
	chain_depth, path, total_amount, confidence_score, created_at
)
`

const onConflictSkip = `ON CONFLICT (case_id, start_tx_id, end_tx_id, chain_type) DO NOTHING`

const chainSelect = `
SELECT
	id::text, case_id, start_tx_id, end_tx_id, chain_type,
	chain_depth, path, total_amount, confidence_score, created_at
FROM transaction_chains
`

const listChainsSQL = chainSelect + `
WHERE case_id = $1
  AND ($2::text IS NULL OR chain_type = $2::text)
ORDER BY chain_depth DESC, created_at DESC, id
`

const getChainSQL = chainSelect + `
WHERE id = $1::uuid
`

const deleteChainSQL = `
DELETE FROM transaction_chains WHERE id = $1::uuid
`
