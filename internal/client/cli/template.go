package cli

const usageTemplate = `
Boardsync Client

Usage:
  boardsync-client [OPTIONS] COMMAND [ARGS]

Options:
  --version                Show version information
  --config PATH            YAML config file (env BOARDSYNC_CONFIG)
  --relay URL              Relay websocket URL (default: ws://localhost:8080/ws)
  --api URL                Relay REST API URL (default: http://localhost:8080)
  --database PATH          Local snapshot database (default: boardsync-client.db)
  --node-id ID             Node identifier (default: random)
  --log-level LEVEL        debug, info, warn, error

Every option can also be set as BOARDSYNC_CLIENT_<NAME> (BOARDSYNC_LOG_<NAME> for log-*).

Commands:
  watch <room>                       Join the room and print changes until interrupted
  draw <room> <kind> <x> <y> [text]  Add an object (path, rect, circle, text, image)
  move <room> <id> <x> <y>           Move an object
  delete <room> <id>                 Delete an object
  show <room>                        Print objects of the room
  info [room]                        Relay health or room information
  rooms                              List rooms known to the relay
  snapshots                          List local room snapshots
  forget <room>                      Delete local snapshot of the room

Examples:
  boardsync-client draw design rect 10 20
  boardsync-client draw design text 0 0 'hello'
  boardsync-client --relay wss://relay.example.com/ws watch design
`

const sceneTemplate = `
=== Room {{ .Room }} ===

Status: {{ .Status }}
{{- if eq (len .Objects) 0 }}
No objects.
{{ else }}
Found {{ len .Objects }} object(s):
{{ range .Objects }}
- {{ .ID }}
   Kind:     {{ .Kind }}
   Position: {{ printf "%g, %g" .Geometry.X .Geometry.Y }}
   {{- if .Geometry.Rotation }}
   Rotation: {{ printf "%g" .Geometry.Rotation }}
   {{- end }}
   {{- if or (ne .Geometry.ScaleX 1.0) (ne .Geometry.ScaleY 1.0) }}
   Scale:    {{ printf "%g x %g" .Geometry.ScaleX .Geometry.ScaleY }}
   {{- end }}
   {{- if .Payload }}
   Payload:  {{ printf "%q" .Payload }}
   {{- end }}
{{ end }}
{{- end }}`

const roomInfoTemplate = `
=== Room {{ .Room }} ===

Objects:    {{ .Objects }}
Members:    {{ .Members }}
Entries:    {{ .Entries }}
State size: {{ .StateSize }} bytes
{{- if gt .Clock 0 }}
Clock:      {{ .Clock }}
{{- end }}
{{- if not .UpdatedAt.IsZero }}
Updated:    {{ .UpdatedAt.Format "2006-01-02 15:04:05" }}
{{- end }}
`

const roomsTemplate = `
{{- if eq (len .Rooms) 0 }}
No rooms on relay.
{{- else }}
Rooms on relay ({{ len .Rooms }}):
{{- range .Rooms }}
  {{ . }}
{{- end }}
{{- end }}
`

const healthTemplate = `
Relay status: {{ .Status }}
Loaded rooms: {{ .Rooms }}
`

const snapshotsTemplate = `
=== Local Snapshots ===
{{ if eq (len .) 0 }}
No snapshots found.
{{ else }}
Found {{ len . }} snapshot(s):
{{ range . }}
- {{ .Room }}
   Size:  {{ .Size }} bytes
   Saved: {{ .SavedAt.Format "2006-01-02 15:04:05" }}
{{ end }}
{{- end }}`
