package dashboard

import "github.com/gofiber/fiber/v2"

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.SendString(indexHTML)
}

const indexHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>AxisRAG</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 60rem; margin: 2rem auto; padding: 0 1rem; color: #222; }
section { border: 1px solid #ddd; border-radius: 6px; padding: 1rem; margin-bottom: 1rem; }
input[type=text] { width: 70%; padding: .4rem; }
pre { white-space: pre-wrap; background: #f6f6f6; padding: .75rem; border-radius: 4px; }
.error { color: #b00020; }
</style>
</head>
<body>
<h1>AxisRAG</h1>

<section>
<h2>Document</h2>
<form id="ingest"><input type="text" name="pdf_path" placeholder="/path/to/document.pdf"> <button>Ingest</button></form>
<pre id="document">No document ingested.</pre>
</section>

<section>
<h2>Ask</h2>
<form id="ask"><input type="text" name="question" placeholder="What does the document say about..."> <button>Ask</button></form>
<pre id="answer"></pre>
<ol id="sources"></ol>
</section>

<section>
<h2>Reports</h2>
<ul id="reports"></ul>
<pre id="report"></pre>
</section>

<script>
async function call(method, url, body) {
  const res = await fetch(url, {
    method,
    headers: body ? {"Content-Type": "application/json"} : {},
    body: body ? JSON.stringify(body) : undefined,
  });
  const type = res.headers.get("Content-Type") || "";
  const data = type.includes("json") ? await res.json() : await res.text();
  if (!res.ok) throw new Error(data.stage ? data.stage + ": " + data.error : data.error);
  return data;
}

function show(id, text, failed) {
  const el = document.getElementById(id);
  el.textContent = text;
  el.className = failed ? "error" : "";
}

async function loadDocument() {
  try {
    const d = await call("GET", "/v1/document");
    show("document", d.document.path + "\n" + d.document.pages + " pages, " + d.document.chunks + " chunks\n\n" + (d.summary || ""));
  } catch (e) {}
}

async function loadReports() {
  const list = document.getElementById("reports");
  list.innerHTML = "";
  const data = await call("GET", "/v1/reports");
  for (const name of data.reports.reverse()) {
    const li = document.createElement("li");
    const a = document.createElement("a");
    a.href = "#";
    a.textContent = name;
    a.onclick = async (ev) => {
      ev.preventDefault();
      show("report", await call("GET", "/v1/reports/" + name + "?format=markdown"));
    };
    li.appendChild(a);
    list.appendChild(li);
  }
}

document.getElementById("ingest").onsubmit = async (ev) => {
  ev.preventDefault();
  show("document", "Ingesting...");
  try {
    await call("POST", "/v1/ingest", {pdf_path: ev.target.pdf_path.value});
    await loadDocument();
  } catch (e) { show("document", e.message, true); }
};

document.getElementById("ask").onsubmit = async (ev) => {
  ev.preventDefault();
  show("answer", "Thinking...");
  const sources = document.getElementById("sources");
  sources.innerHTML = "";
  try {
    const a = await call("POST", "/v1/ask", {question: ev.target.question.value});
    show("answer", a.text + "\n\n" + a.provider + " (" + a.model + ")" + (a.fallback ? ", fallback" : ""));
    for (const s of a.sources || []) {
      const li = document.createElement("li");
      li.textContent = "[" + s.chunk.chunk_id + ", pages " + s.chunk.first_page + "-" + s.chunk.last_page + ", score " + s.score.toFixed(3) + "] " + s.chunk.text;
      sources.appendChild(li);
    }
  } catch (e) { show("answer", e.message, true); }
};

loadDocument();
loadReports();
</script>
</body>
</html>
`
