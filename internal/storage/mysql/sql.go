package mysql

const upsertDocumentsPrefix = "INSERT INTO cms_documents\n  (id, doc_type, house, rev, position, payload)\nVALUES "

// rev and payload always follow the CMS; doc_type never changes for an id.
const upsertDocumentsOnDup = ` ON DUPLICATE KEY UPDATE
  house      = VALUES(house),
  rev        = VALUES(rev),
  position   = VALUES(position),
  payload    = VALUES(payload),
  updated_at = CURRENT_TIMESTAMP
`

const insertSubmissionSQL = `
INSERT INTO contact_submissions
  (id, kind, recipient, email, status, error, message_id, payload, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

// Documents come back in the order the CMS returned them (position), which
// is the order grouping preserves inside each category.
const listDocumentsSQL = `
SELECT id, doc_type, house, rev, position, payload
FROM cms_documents
WHERE doc_type = ?
ORDER BY position, id
`

// Site-wide documents (house IS NULL) are shared by every house.
const listHouseDocumentsSQL = `
SELECT id, doc_type, house, rev, position, payload
FROM cms_documents
WHERE doc_type = ? AND (house = ? OR house IS NULL)
ORDER BY position, id
`
