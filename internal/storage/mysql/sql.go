package mysql

// -----------------------------------------------------------------------------
// ROOMS
// -----------------------------------------------------------------------------

const roomColumns = `
  r.id, r.property_id, r.room_number, r.room_type, r.price_cents, r.capacity,
  r.climate, r.description, r.amenities, r.status, r.maintenance,
  r.created_at, r.updated_at`

const insertRoomSQL = `
INSERT INTO rooms
  (property_id, room_number, room_type, price_cents, capacity, climate, description, amenities, status, maintenance, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const getRoomSQL = `SELECT` + roomColumns + `
FROM rooms r
WHERE r.id = ? AND r.deleted_at IS NULL
`

// Row lock that serializes every booking write on the room.
const lockRoomSQL = getRoomSQL + `FOR UPDATE`

const listRoomsSQL = `SELECT` + roomColumns + `
FROM rooms r
WHERE r.deleted_at IS NULL
  AND (? = 0 OR r.property_id = ?)
  AND (? = '' OR r.status = ?)
  AND (? = '' OR r.room_type = ?)
  AND (? = '' OR r.room_number LIKE CONCAT('%', ?, '%'))
ORDER BY r.room_number
`

const setRoomStatusSQL = `UPDATE rooms SET status = ?, updated_at = ? WHERE id = ?`

const softDeleteRoomSQL = `UPDATE rooms SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`

// -----------------------------------------------------------------------------
// ROOM IMAGES
// -----------------------------------------------------------------------------

const insertImageSQL = `INSERT INTO room_images (room_id, url, is_primary) VALUES (?, ?, ?)`

const countImagesSQL = `SELECT COUNT(*) FROM room_images WHERE room_id = ?`

const imageIsPrimarySQL = `SELECT is_primary FROM room_images WHERE id = ? AND room_id = ?`

const clearPrimarySQL = `UPDATE room_images SET is_primary = 0 WHERE room_id = ?`

const setPrimarySQL = `UPDATE room_images SET is_primary = (id = ?) WHERE room_id = ?`

// Oldest remaining image takes over.
const promoteFirstImageSQL = `UPDATE room_images SET is_primary = 1 WHERE room_id = ? ORDER BY id LIMIT 1`

const deleteImageSQL = `DELETE FROM room_images WHERE id = ? AND room_id = ?`

const deleteRoomImagesSQL = `DELETE FROM room_images WHERE room_id = ?`

// -----------------------------------------------------------------------------
// BOOKINGS
// -----------------------------------------------------------------------------

// Joined with the room (deleted or not) and the guest for summaries.
const bookingSelect = `
SELECT
  b.id, b.booking_number, b.guest_id, b.room_id, b.check_in, b.check_out,
  b.guest_count, b.nights, b.total_cents, b.status, b.special_requests, b.created_by,
  b.created_at, b.updated_at,
  r.room_number, r.room_type, r.price_cents,
  u.name, u.email, u.phone
FROM bookings b
JOIN rooms r ON r.id = b.room_id
LEFT JOIN users u ON u.id = b.guest_id
`

const getBookingSQL = bookingSelect + `WHERE b.id = ?`

const getRoomBookingSQL = bookingSelect + `WHERE b.id = ? AND b.room_id = ?`

const bookingsInWindowSQL = bookingSelect + `
WHERE r.property_id = ?
  AND r.deleted_at IS NULL
  AND b.status <> 'cancelled'
  AND b.check_in <= ?
  AND b.check_out >= ?
ORDER BY b.id
`

const insertBookingSQL = `
INSERT INTO bookings
  (booking_number, guest_id, room_id, check_in, check_out, guest_count, nights, total_cents,
   status, special_requests, created_by, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateBookingStatusSQL = `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND room_id = ?`

// -----------------------------------------------------------------------------
// USERS
// -----------------------------------------------------------------------------

const userColumns = `id, name, email, phone, password_hash, role, active, created_at`

const getUserSQL = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

const getUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE email = ?`

const insertUserSQL = `
INSERT INTO users (name, email, phone, password_hash, role, active, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

// Seeded accounts keep the id issued by the auth service.
const insertUserWithIDSQL = `
INSERT INTO users (id, name, email, phone, password_hash, role, active, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`
