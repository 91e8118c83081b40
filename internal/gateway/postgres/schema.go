package postgres

// schema holds the statements applied after AutoMigrate. Each is idempotent.
var schema = []string{
	foreignKey("ticket_types", "event_id", "events"),
	foreignKey("event_rsvps", "event_id", "events"),
	foreignKey("orders", "event_id", "events"),
	foreignKey("order_items", "order_id", "orders"),
	foreignKey("tickets", "event_id", "events"),
	foreignKey("tickets", "order_id", "orders"),

	`CREATE OR REPLACE VIEW ticket_types_with_availability AS
SELECT tt.*, GREATEST(tt.capacity - tt.sold_count, 0) AS remaining
FROM ticket_types tt`,

	createOrderWithItems,
}

func foreignKey(table, column, ref string) string {
	name := "fk_" + table + "_" + column
	return `DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '` + name + `') THEN
		ALTER TABLE ` + table + ` ADD CONSTRAINT ` + name + `
			FOREIGN KEY (` + column + `) REFERENCES ` + ref + `(id) ON DELETE CASCADE;
	END IF;
END $$`
}

// createOrderWithItems validates inventory and creates the order, its items
// and one ticket per unit in a single transaction. The caller identifies the
// buyer through the request.jwt.claim.sub setting.
const createOrderWithItems = `CREATE OR REPLACE FUNCTION create_order_with_items(p_event_id uuid, p_items jsonb)
RETURNS uuid
LANGUAGE plpgsql
AS $$
DECLARE
	v_user_id  uuid := nullif(current_setting('request.jwt.claim.sub', true), '')::uuid;
	v_event    events%ROWTYPE;
	v_type     ticket_types%ROWTYPE;
	v_item     jsonb;
	v_qty      int;
	v_order_id uuid;
	v_item_id  uuid;
	v_total    int := 0;
	v_currency text := 'CAD';
BEGIN
	IF v_user_id IS NULL THEN
		RAISE EXCEPTION 'Not authenticated' USING ERRCODE = '28000';
	END IF;

	SELECT * INTO v_event FROM events WHERE id = p_event_id AND is_published;
	IF NOT FOUND THEN
		RAISE EXCEPTION 'Event not found';
	END IF;
	IF v_event.is_free THEN
		RAISE EXCEPTION 'This event is free. RSVP instead';
	END IF;
	IF p_items IS NULL OR jsonb_array_length(p_items) = 0 THEN
		RAISE EXCEPTION 'No tickets selected';
	END IF;

	INSERT INTO orders (event_id, user_id, status, total_cents, currency, created_at)
	VALUES (p_event_id, v_user_id, 'paid', 0, v_currency, now())
	RETURNING id INTO v_order_id;

	FOR v_item IN SELECT * FROM jsonb_array_elements(p_items) LOOP
		v_qty := (v_item->>'quantity')::int;
		IF v_qty IS NULL OR v_qty <= 0 THEN
			RAISE EXCEPTION 'Invalid quantity';
		END IF;

		SELECT * INTO v_type FROM ticket_types
		WHERE id = (v_item->>'ticket_type_id')::uuid
			AND event_id = p_event_id
			AND is_active
		FOR UPDATE;
		IF NOT FOUND THEN
			RAISE EXCEPTION 'Ticket type not found';
		END IF;
		IF v_type.capacity - v_type.sold_count < v_qty THEN
			RAISE EXCEPTION 'Not enough tickets remaining for %', v_type.name;
		END IF;

		UPDATE ticket_types SET sold_count = sold_count + v_qty WHERE id = v_type.id;

		INSERT INTO order_items (order_id, ticket_type_id, quantity, unit_price_cents, currency)
		VALUES (v_order_id, v_type.id, v_qty, v_type.price_cents, v_type.currency)
		RETURNING id INTO v_item_id;

		INSERT INTO tickets (event_id, order_id, order_item_id, ticket_type_id, owner_user_id,
			status, is_active, scan_code, created_at)
		SELECT p_event_id, v_order_id, v_item_id, v_type.id, v_user_id,
			'valid', true, upper(substr(replace(gen_random_uuid()::text, '-', ''), 1, 12)), now()
		FROM generate_series(1, v_qty);

		v_total := v_total + v_qty * v_type.price_cents;
		v_currency := v_type.currency;
	END LOOP;

	UPDATE orders SET total_cents = v_total, currency = v_currency WHERE id = v_order_id;
	RETURN v_order_id;
END;
$$`
