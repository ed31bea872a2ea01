package http

import "net/http"

// handleIndex renders the chat page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Psychologist Chatbot</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 720px; margin: 2rem auto; padding: 0 1rem; }
        #messages { border: 1px solid #ddd; border-radius: 8px; padding: 1rem; height: 60vh; overflow-y: auto; }
        .message { margin: .5rem 0; padding: .5rem .75rem; border-radius: 6px; white-space: pre-wrap; }
        .user { background: #e8f0fe; text-align: right; }
        .assistant { background: #f4f4f4; }
        .error { color: #b00020; }
        form { display: flex; gap: .5rem; margin-top: 1rem; }
        input { flex: 1; padding: .5rem; }
    </style>
</head>
<body>
    <h1>Psychologist Chatbot</h1>
    <div id="messages"></div>

    <form id="chat-form" onsubmit="sendMessage(event)">
        <input type="text" id="message-input" placeholder="How are you feeling today?" autocomplete="off">
        <button type="submit">Send</button>
        <button type="button" id="record-btn" onclick="toggleRecording()">Record</button>
        <button type="button" onclick="resetChat()">Reset</button>
    </form>

    <script>
        let sessionId = sessionStorage.getItem('session_id') || '';
        let recorder = null;

        function addMessage(cls, text) {
            const el = document.createElement('div');
            el.className = 'message ' + cls;
            el.textContent = text;
            const box = document.getElementById('messages');
            box.appendChild(el);
            box.scrollTop = box.scrollHeight;
        }

        async function handle(resp, userText) {
            const id = resp.headers.get('X-Session-ID');
            if (id) { sessionId = id; sessionStorage.setItem('session_id', id); }
            const data = await resp.json();
            if (!resp.ok) { addMessage('error', data.message); return; }
            if (userText) addMessage('user', userText);
            addMessage('assistant', data.answer);
        }

        async function sendMessage(e) {
            e.preventDefault();
            const input = document.getElementById('message-input');
            const text = input.value.trim();
            if (!text) return;
            input.value = '';
            const resp = await fetch('/api/chat', {
                method: 'POST',
                headers: { 'Content-Type': 'application/json', 'X-Session-ID': sessionId },
                body: JSON.stringify({ message: text })
            });
            await handle(resp, text);
        }

        async function toggleRecording() {
            const btn = document.getElementById('record-btn');
            if (recorder) { recorder.stop(); return; }
            const stream = await navigator.mediaDevices.getUserMedia({ audio: true });
            const chunks = [];
            recorder = new MediaRecorder(stream);
            recorder.ondataavailable = ev => chunks.push(ev.data);
            recorder.onstop = async () => {
                stream.getTracks().forEach(t => t.stop());
                recorder = null;
                btn.textContent = 'Record';
                const form = new FormData();
                form.append('audio', new Blob(chunks), 'speech.webm');
                const resp = await fetch('/api/audio', { method: 'POST', headers: { 'X-Session-ID': sessionId }, body: form });
                const id = resp.headers.get('X-Session-ID');
                if (id) { sessionId = id; sessionStorage.setItem('session_id', id); }
                const data = await resp.json();
                if (!resp.ok) { addMessage('error', data.message); return; }
                addMessage('user', data.transcript);
                addMessage('assistant', data.answer);
            };
            recorder.start();
            btn.textContent = 'Stop';
        }

        async function resetChat() {
            if (sessionId) await fetch('/api/history', { method: 'DELETE', headers: { 'X-Session-ID': sessionId } });
            document.getElementById('messages').innerHTML = '';
        }
    </script>
</body>
</html>`
