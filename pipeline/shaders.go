package pipeline

// Built-in shaders. Fragment stages draw a full-screen quad through the
// pass-through vertex shader; vertex stages that do not name a fragment
// shader fall back to flat white.

const passVertexShader = `#version 430 core
layout(location = 0) in vec2 position;
out vec2 uv;
void main() {
	uv = position * 0.5 + 0.5;
	gl_Position = vec4(position, 0.0, 1.0);
}
`

const flatFragmentShader = `#version 430 core
out vec4 fragColor;
void main() {
	fragColor = vec4(1.0);
}
`
